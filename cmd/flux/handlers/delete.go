package handlers

import (
	"fmt"
	"strings"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

func confirm(prompt string) bool {
	var response string
	fmt.Print(prompt + " \n[y/N] ")
	fmt.Scanln(&response)

	return strings.ToLower(response) == "y"
}

func deleteProject(c *client, id int64) error {
	var res pkg.MessageResult
	if err := c.do("DELETE", fmt.Sprintf("/projects/%d", id), nil, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}

	return nil
}

func DeleteCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux delete [project | all]

		Options:
		  project: The id or slug of the project to delete
		  all: Delete all projects

		Flux will stop the containers of the project and forget it. Files on the server are kept.`)
		return nil
	}

	c := newClient(config)

	if len(args) == 1 && args[0] == "all" {
		if !confirm("Are you sure you want to delete all projects? this will stop all of their containers and cannot be undone.") {
			fmt.Println("Aborting...")
			return nil
		}

		if !confirm("Are you really sure you want to delete all projects?") {
			fmt.Println("Aborting...")
			return nil
		}

		var projects projectsResponse
		if err := c.do("GET", "/projects", nil, &projects); err != nil {
			return fmt.Errorf("failed to get projects: %v", err)
		}

		for _, project := range projects.Projects {
			if err := deleteProject(c, project.ID); err != nil {
				return fmt.Errorf("delete of %s failed: %v", project.Slug, err)
			}
		}

		fmt.Printf("Successfully deleted all projects\n")
		return nil
	}

	projectID, name, err := GetProjectID(c, "delete", args)
	if err != nil {
		return err
	}

	if !confirm(fmt.Sprintf("Are you sure you want to delete %s? this will stop its containers and cannot be undone.", name)) {
		fmt.Println("Aborting...")
		return nil
	}

	if err := deleteProject(c, projectID); err != nil {
		return fmt.Errorf("delete failed: %v", err)
	}

	fmt.Printf("Successfully deleted %s\n", name)

	return nil
}
