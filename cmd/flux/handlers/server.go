package handlers

import (
	"fmt"

	"github.com/briandowns/spinner"
	"github.com/juls0730/fluxops/cmd/flux/models"
	fluxmodels "github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

type serversResponse struct {
	pkg.Envelope
	Servers []fluxmodels.Server `json:"servers"`
}

func ServerCommand(seekingHelp bool, config models.Config, info pkg.Info, loadingSpinner *spinner.Spinner, spinnerWriter *models.CustomSpinnerWriter, args []string) error {
	if seekingHelp || len(args) == 0 {
		fmt.Println(`Usage:
		  flux server list
		  flux server add <host> [user] [private-key-path]

		Flux will list the servers known to the daemon, or register a new one reachable over SSH.`)
		return nil
	}

	c := newClient(config)

	switch args[0] {
	case "list":
		var res serversResponse
		if err := c.do("GET", "/servers", nil, &res); err != nil {
			return fmt.Errorf("failed to get servers: %v", err)
		}

		if len(res.Servers) == 0 {
			fmt.Println("No servers found")
			return nil
		}

		for _, s := range res.Servers {
			fmt.Printf("%d  %s  %s@%s  (%s)\n", s.ID, s.Name, s.User(), s.Address(), s.Status)
		}
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: flux server add <host> [user] [private-key-path]")
		}

		server := fluxmodels.Server{Host: args[1]}
		if len(args) > 2 {
			server.Username = args[2]
		}
		if len(args) > 3 {
			server.PrivateKeyPath = args[3]
		}

		var res serversResponse
		if err := c.do("POST", "/servers", server, &res); err != nil {
			return fmt.Errorf("failed to add server: %v", err)
		}
		if len(res.Servers) == 0 {
			return fmt.Errorf("failed to add server: %s", res.Error)
		}

		fmt.Printf("Added server %s with id %d\n", res.Servers[0].Host, res.Servers[0].ID)
	default:
		return fmt.Errorf("unknown server command: %s", args[0])
	}

	return nil
}
