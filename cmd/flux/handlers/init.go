package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"github.com/juls0730/fluxops/cmd/flux/models"
	fluxmodels "github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

type projectResponse struct {
	pkg.Envelope
	Project *fluxmodels.Project `json:"project"`
}

func ask(in *bufio.Reader, question, fallback string) string {
	if fallback != "" {
		fmt.Printf("%s [%s]\n", question, fallback)
	} else {
		fmt.Println(question)
	}

	line, _ := in.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return fallback
	}

	return line
}

// readEnvFile loads the variables the project should run with. A missing
// file is not an error.
func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	return env, nil
}

func InitCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp {
		fmt.Println(`Usage:
		  flux init [project-name]

		Options:
		  project-name: The name of the project to initialize

		Flux will register the project in the current directory with the daemon and write its flux.json.
		Variables from .env are passed to the project's containers.`)
		return nil
	}

	if _, err := os.Stat("flux.json"); err == nil {
		return fmt.Errorf("flux.json already exists, this project is already initialized")
	}

	in := bufio.NewReader(os.Stdin)

	var projectConfig pkg.ProjectConfig

	cwd, _ := os.Getwd()
	if len(args) > 0 {
		projectConfig.Slug = args[0]
	} else {
		projectConfig.Slug = ask(in, "What is the name of your project?", filepath.Base(cwd))
	}

	if fluxmodels.SanitizeSlug(projectConfig.Slug) == "" {
		return fmt.Errorf("that name has no usable characters, try letters, digits, - or _")
	}

	projectConfig.Framework = ask(in, "What framework does your project use? (laravel, symfony, node.js, next.js, react, vue, ...)", "")

	serverID, err := strconv.ParseInt(ask(in, "Which server should it run on? (see flux server list)", "1"), 10, 64)
	if err != nil || serverID < 1 {
		return fmt.Errorf("that doesnt look like a valid server id")
	}
	projectConfig.ServerID = serverID

	projectConfig.Branch = ask(in, "Which git branch should be deployed?", "main")

	projectConfig.Runtime = ask(in, "Should it run in docker or directly on the host?", string(fluxmodels.RuntimeDocker))
	switch fluxmodels.Runtime(projectConfig.Runtime) {
	case fluxmodels.RuntimeDocker, fluxmodels.RuntimeHost:
	default:
		return fmt.Errorf("runtime must be docker or host")
	}

	projectConfig.EnvFile = ".env"
	env, err := readEnvFile(projectConfig.EnvFile)
	if err != nil {
		return err
	}
	projectConfig.Environment = env["APP_ENV"]

	c := newClient(config)

	var created projectResponse
	err = c.do("POST", "/projects", struct {
		pkg.ProjectConfig
		Env map[string]string `json:"env"`
	}{projectConfig, env}, &created)
	if err != nil {
		return fmt.Errorf("failed to register project: %v", err)
	}
	if created.Project == nil {
		return fmt.Errorf("failed to register project: %s", created.Error)
	}

	projectConfig.ID = created.Project.ID
	projectConfig.Slug = created.Project.Slug
	projectConfig.Environment = created.Project.Environment

	configBytes, err := json.MarshalIndent(projectConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to parse project config: %v", err)
	}

	if err := os.WriteFile("flux.json", configBytes, 0644); err != nil {
		return fmt.Errorf("failed to write flux.json: %v", err)
	}

	fmt.Printf("Successfully initialized project %s (%d variables from %s)\n", projectConfig.Slug, len(env), projectConfig.EnvFile)

	return nil
}
