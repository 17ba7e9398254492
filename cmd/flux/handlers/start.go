package handlers

import (
	"fmt"
	"strings"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

// lifecycleResult covers the fields every container operation may answer
// with.
type lifecycleResult struct {
	pkg.Envelope
	Message     string `json:"message"`
	Type        string `json:"type"`
	ContainerID string `json:"container_id"`
	Port        int    `json:"port"`
}

func lifecycleCommand(op, verb string, config models.Config, loadingSpinner *spinner.Spinner, args []string) error {
	c := newClient(config)

	projectID, name, err := GetProjectID(c, op, args)
	if err != nil {
		return err
	}

	loadingSpinner.Suffix = fmt.Sprintf(" %s %s", verb, name)
	loadingSpinner.Start()

	var res lifecycleResult
	err = c.do("POST", fmt.Sprintf("/projects/%d/%s", projectID, op), nil, &res)
	loadingSpinner.Stop()
	if err != nil {
		return fmt.Errorf("%s failed: %v", op, err)
	}

	if !res.Success {
		return fmt.Errorf("%s failed: %s", op, res.Error)
	}

	switch {
	case res.Message != "":
		fmt.Println(res.Message)
	case res.Type != "":
		fmt.Printf("Built %s (%s)\n", name, res.Type)
	default:
		fmt.Printf("Successfully ran %s on %s\n", op, name)
	}

	if res.ContainerID != "" {
		fmt.Printf("Container %s listening on port %d\n", res.ContainerID, res.Port)
	}

	return nil
}

func StartCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux start [project]

		Flux will start the containers of the project in the current directory or the specified project.`)
		return nil
	}

	return lifecycleCommand("start", "Starting", config, loadingSpinner, args)
}

func RestartCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux restart [project]

		Flux will restart the containers of the project in the current directory or the specified project.`)
		return nil
	}

	return lifecycleCommand("restart", "Restarting", config, loadingSpinner, args)
}

func BuildCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux build [project]

		Flux will build the image of the project, writing a Dockerfile for it if it has none.`)
		return nil
	}

	return lifecycleCommand("build", "Building", config, loadingSpinner, args)
}

func StatusCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux status [project]

		Flux will show the containers of the project in the current directory or the specified project.`)
		return nil
	}

	c := newClient(config)
	projectID, name, err := GetProjectID(c, "status", args)
	if err != nil {
		return err
	}

	var status pkg.StatusResult
	if err := c.do("GET", fmt.Sprintf("/projects/%d/status", projectID), nil, &status); err != nil {
		return fmt.Errorf("status failed: %v", err)
	}
	if !status.Success {
		return fmt.Errorf("status failed: %s", status.Error)
	}

	if !status.Exists {
		fmt.Printf("%s has no containers\n", name)
		return nil
	}

	if status.Container != nil {
		fmt.Printf("%s  %s  %s  %s\n", status.Container.Names, status.Container.Image, status.Container.Status, status.Container.Ports)
	}

	for _, svc := range status.Services {
		fmt.Printf("  %-20s %-10s %s\n", svc.Service, strings.ToLower(svc.State), svc.Status)
	}

	return nil
}
