package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

type projectsResponse struct {
	pkg.Envelope
	Projects []models.Project `json:"projects"`
}

func readProjectConfig() (pkg.ProjectConfig, error) {
	var config pkg.ProjectConfig

	fluxConfigFile, err := os.Open("flux.json")
	if err != nil {
		return config, fmt.Errorf("failed to open flux.json: %v", err)
	}
	defer fluxConfigFile.Close()

	if err := json.NewDecoder(fluxConfigFile).Decode(&config); err != nil {
		return config, fmt.Errorf("failed to decode flux.json: %v", err)
	}

	return config, nil
}

// GetProjectID resolves the project a command acts on: an id or slug given
// as the first argument, or the flux.json in the current directory.
func GetProjectID(c *client, command string, args []string) (int64, string, error) {
	if len(args) == 0 {
		if _, err := os.Stat("flux.json"); err != nil {
			return 0, "", fmt.Errorf("usage: flux %[1]s <project>, or run flux %[1]s in the project directory", command)
		}

		config, err := readProjectConfig()
		if err != nil {
			return 0, "", err
		}
		if config.ID == 0 {
			return 0, "", fmt.Errorf("flux.json has no project id, please run flux init first")
		}

		return config.ID, config.Slug, nil
	}

	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		return id, args[0], nil
	}

	var projects projectsResponse
	if err := c.do("GET", "/projects", nil, &projects); err != nil {
		return 0, "", fmt.Errorf("failed to get projects: %v", err)
	}

	slug := models.SanitizeSlug(args[0])
	for _, p := range projects.Projects {
		if p.Slug == slug {
			return p.ID, p.Slug, nil
		}
	}

	return 0, "", fmt.Errorf("project %s not found", args[0])
}
