package handlers

import (
	"fmt"
	"os"
	"strconv"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

func LogsCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux logs [project] [-n lines] [--framework] [--download]

		Flux will print the container logs of the project, or the framework's own
		log file with --framework. --download saves the framework log to a file.`)
		return nil
	}

	lines := 100
	framework := false
	download := false

	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("-n needs a number of lines")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return fmt.Errorf("that doesnt look like a valid number of lines")
			}
			lines = n
			i++
		case "--framework":
			framework = true
		case "--download":
			download = true
		default:
			rest = append(rest, args[i])
		}
	}

	c := newClient(config)
	projectID, name, err := GetProjectID(c, "logs", rest)
	if err != nil {
		return err
	}

	if download {
		var res pkg.DownloadResult
		if err := c.do("GET", fmt.Sprintf("/projects/%d/logs/framework/download", projectID), nil, &res); err != nil {
			return fmt.Errorf("download failed: %v", err)
		}
		if !res.Success {
			return fmt.Errorf("download failed: %s", res.Error)
		}

		if err := os.WriteFile(res.Filename, []byte(res.Content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %v", res.Filename, err)
		}

		fmt.Printf("Saved logs of %s to %s\n", name, res.Filename)
		return nil
	}

	path := fmt.Sprintf("/projects/%d/logs?lines=%d", projectID, lines)
	if framework {
		path = fmt.Sprintf("/projects/%d/logs/framework?lines=%d", projectID, lines)
	}

	var res pkg.LogsResult
	if err := c.do("GET", path, nil, &res); err != nil {
		return fmt.Errorf("logs failed: %v", err)
	}
	if !res.Success {
		return fmt.Errorf("logs failed: %s", res.Error)
	}

	fmt.Println(res.Logs)

	return nil
}
