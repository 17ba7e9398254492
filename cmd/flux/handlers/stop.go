package handlers

import (
	"fmt"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

const stopHelp = `Usage:
  flux stop [project]

Flux will stop and remove the containers of the project in the current directory or the specified project.
A standalone container that is already gone still counts as stopped. A compose stack reports an error
when docker compose down fails, so the stack may still be partly running.`

func StopCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(stopHelp)
		return nil
	}

	return lifecycleCommand("stop", "Stopping", config, loadingSpinner, args)
}
