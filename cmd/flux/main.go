package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/handlers"
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

//go:embed config.json
var config []byte

var configPath = filepath.Join(os.Getenv("HOME"), "/.config/flux")

var helpStr = `Usage:
  flux <command>

Available Commands:
  init        Register the project in the current directory
  deploy      Deploy the latest version of a project
  build       Build the image of a project
  start       Start the containers of a project
  stop        Stop the containers of a project
  restart     Restart the containers of a project
  status      Show the containers of a project
  logs        Show the logs of a project
  delete      Delete a project
  list        List all projects
  server      List or add servers

Flags:
  -h, --help   help for flux

Use "flux <command> --help" for more information about a command.`

type CommandFunc func(bool, models.Config, pkg.Info, *spinner.Spinner, *models.CustomSpinnerWriter, []string) error

var commands = map[string]CommandFunc{
	"init":    handlers.InitCommand,
	"deploy":  handlers.DeployCommand,
	"build":   handlers.BuildCommand,
	"start":   handlers.StartCommand,
	"stop":    handlers.StopCommand,
	"restart": handlers.RestartCommand,
	"status":  handlers.StatusCommand,
	"logs":    handlers.LogsCommand,
	"delete":  handlers.DeleteCommand,
	"list":    handlers.ListCommand,
	"server":  handlers.ServerCommand,
}

// suggest returns the known command closest to the mistyped one, if any is
// close enough to be a plausible typo.
func suggest(command string) string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestDistance := "", 3
	for _, name := range names {
		if d := levenshtein.ComputeDistance(command, name); d < bestDistance {
			best, bestDistance = name, d
		}
	}

	return best
}

func runCommand(command string, args []string, config models.Config, info pkg.Info) error {
	seekingHelp := false
	if len(args) > 0 && (args[len(args)-1] == "--help" || args[len(args)-1] == "-h") {
		seekingHelp = true
		args = args[:len(args)-1]
	}

	handler, ok := commands[command]
	if !ok {
		if s := suggest(command); s != "" {
			return fmt.Errorf("unknown command: %s, did you mean %s?\n%s", command, s, helpStr)
		}
		return fmt.Errorf("unknown command: %s\n%s", command, helpStr)
	}

	spinnerWriter := models.NewCustomSpinnerWriter()

	loadingSpinner := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(spinnerWriter))
	defer func() {
		if loadingSpinner.Active() {
			loadingSpinner.Stop()
		}
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt)
	go func() {
		<-signalChannel
		if loadingSpinner.Active() {
			loadingSpinner.Stop()
		}

		os.Exit(0)
	}()

	return handler(seekingHelp, config, info, loadingSpinner, spinnerWriter, args)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(helpStr)
		os.Exit(1)
	}

	if os.Args[1] == "--help" || os.Args[1] == "-h" {
		fmt.Println(helpStr)
		os.Exit(0)
	}

	if _, err := os.Stat(filepath.Join(configPath, "config.json")); err != nil {
		if err := os.MkdirAll(configPath, 0755); err != nil {
			fmt.Printf("Failed to create config directory: %v\n", err)
			os.Exit(1)
		}

		if err = os.WriteFile(filepath.Join(configPath, "config.json"), config, 0644); err != nil {
			fmt.Printf("Failed to write config file: %v\n", err)
			os.Exit(1)
		}
	}

	var config models.Config
	configBytes, err := os.ReadFile(filepath.Join(configPath, "config.json"))
	if err != nil {
		fmt.Printf("Failed to read config file: %v\n", err)
		os.Exit(1)
	}

	if err := json.Unmarshal(configBytes, &config); err != nil {
		fmt.Printf("Failed to parse config file: %v\n", err)
		os.Exit(1)
	}

	if url := os.Getenv("FLUX_DAEMON_URL"); url != "" {
		config.DaemonURL = url
	}

	command := os.Args[1]
	args := os.Args[2:]

	resp, err := http.Get(config.DaemonURL + "/heartbeat")
	if err != nil {
		fmt.Println("Failed to connect to daemon")
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Println("Failed to connect to daemon")
		os.Exit(1)
	}

	var info pkg.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		fmt.Printf("Failed to decode info: %v\n", err)
		os.Exit(1)
	}

	if err := runCommand(command, args, config, info); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
