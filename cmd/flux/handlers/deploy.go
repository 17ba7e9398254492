package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

// stepReporter prints each step once, when it leaves the pending state.
type stepReporter struct {
	out      *models.CustomStdout
	spinner  *spinner.Spinner
	reported map[int]string
}

func (r *stepReporter) report(run *pkg.DeploymentRun) {
	for i, step := range run.Steps {
		if r.reported[i] == step.Status || step.Status == pkg.StatusPending {
			continue
		}
		r.reported[i] = step.Status

		switch step.Status {
		case pkg.StatusRunning:
			r.spinner.Suffix = fmt.Sprintf(" [%d/%d] %s", i+1, len(run.Steps), step.Name)
		case pkg.StatusSuccess:
			r.out.Printf("✓ %s: %s\n", step.Name, firstLine(step.Output))
		case pkg.StatusFailed:
			r.out.Printf("✗ %s\n", step.Name)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func DeployCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux deploy [project]

		Flux will pull the latest code of the project on its server, install dependencies,
		build assets, run migrations and restart the project.`)
		return nil
	}

	c := newClient(config)

	projectID, name, err := GetProjectID(c, "deploy", args)
	if err != nil {
		return err
	}

	loadingSpinner.Suffix = " Deploying " + name
	loadingSpinner.Start()

	var started pkg.DeploymentResult
	if err := c.do("POST", fmt.Sprintf("/projects/%d/deployments", projectID), nil, &started); err != nil {
		return fmt.Errorf("deploy failed: %v", err)
	}
	if !started.Success || started.Run == nil {
		return fmt.Errorf("deploy failed: %s", started.Error)
	}

	resp, err := c.request("GET", "/deployments/"+started.Run.ID+"/events", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deploy failed: daemon answered %s", resp.Status)
	}

	reporter := &stepReporter{
		out:      models.NewCustomStdout(spinnerWriter),
		spinner:  loadingSpinner,
		reported: make(map[int]string),
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var event string
	var line string
	for scanner.Scan() {
		line = scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var data pkg.DeploymentResult
		if err := json.Unmarshal([]byte(line[6:]), &data); err != nil {
			return fmt.Errorf("failed to parse deployment event: %v", err)
		}

		if data.Run != nil {
			reporter.report(data.Run)
		}

		switch event {
		case "complete":
			loadingSpinner.Stop()
			fmt.Printf("Project %s deployed successfully in %s!\n", name, data.Run.Duration)
			return nil
		case "failed":
			loadingSpinner.Stop()
			fmt.Print(data.Run.Output)
			return fmt.Errorf("deployment failed at %s: %s", data.Run.FailedStep, data.Run.Error)
		case "dismissed":
			loadingSpinner.Stop()
			return fmt.Errorf("deployment %s was dismissed", started.Run.ID)
		case "error":
			loadingSpinner.Stop()
			return fmt.Errorf("deployment failed: %s", data.Error)
		}
		event = ""
	}

	// the stream closed, but we didnt get a terminal event
	return fmt.Errorf("deploy failed: %s", strings.TrimSuffix(line, "\n"))
}
