package handlers

import (
	"fmt"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

func ListCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux list

		Flux will list all the projects in the daemon.`)
		return nil
	}

	c := newClient(config)

	var projects projectsResponse
	if err := c.do("GET", "/projects", nil, &projects); err != nil {
		return fmt.Errorf("failed to get projects: %v", err)
	}

	if len(projects.Projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	for _, project := range projects.Projects {
		state := "unknown"

		var status pkg.StatusResult
		if err := c.do("GET", fmt.Sprintf("/projects/%d/status", project.ID), nil, &status); err == nil && status.Success {
			switch {
			case !status.Exists:
				state = "stopped"
			case status.Container != nil:
				state = status.Container.State
			}
		}

		fmt.Printf("%s (%s, %s) on server %d\n", project.Slug, project.Framework, state, project.ServerID)
	}

	return nil
}
