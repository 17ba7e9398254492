package docker

import (
	"time"

	"github.com/juls0730/fluxops/models"
)

type Timeouts struct {
	DockerBuild    time.Duration `mapstructure:"docker_build"`
	ComposeBuild   time.Duration `mapstructure:"compose_build"`
	ComposeStart   time.Duration `mapstructure:"compose_start"`
	ComposeCleanup time.Duration `mapstructure:"compose_cleanup"`
	CommandExec    time.Duration `mapstructure:"command_exec"`
}

// Config holds the paths and limits the container engine works with. It is
// built once at startup and never read from globals.
type Config struct {
	ProjectsRoot     string   `mapstructure:"projects_root"`
	ComposeFile      string   `mapstructure:"compose_file"`
	FallbackPortBase int      `mapstructure:"fallback_port_base"`
	Timeouts         Timeouts `mapstructure:"timeouts"`
}

func DefaultConfig() Config {
	return Config{
		ProjectsRoot:     models.DefaultProjectsRoot,
		ComposeFile:      "docker-compose.yml",
		FallbackPortBase: 8000,
		Timeouts: Timeouts{
			DockerBuild:    600 * time.Second,
			ComposeBuild:   1200 * time.Second,
			ComposeStart:   300 * time.Second,
			ComposeCleanup: 180 * time.Second,
			CommandExec:    300 * time.Second,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ProjectsRoot == "" {
		c.ProjectsRoot = d.ProjectsRoot
	}
	if c.ComposeFile == "" {
		c.ComposeFile = d.ComposeFile
	}
	if c.FallbackPortBase == 0 {
		c.FallbackPortBase = d.FallbackPortBase
	}
	if c.Timeouts.DockerBuild <= 0 {
		c.Timeouts.DockerBuild = d.Timeouts.DockerBuild
	}
	if c.Timeouts.ComposeBuild <= 0 {
		c.Timeouts.ComposeBuild = d.Timeouts.ComposeBuild
	}
	if c.Timeouts.ComposeStart <= 0 {
		c.Timeouts.ComposeStart = d.Timeouts.ComposeStart
	}
	if c.Timeouts.ComposeCleanup <= 0 {
		c.Timeouts.ComposeCleanup = d.Timeouts.ComposeCleanup
	}
	if c.Timeouts.CommandExec <= 0 {
		c.Timeouts.CommandExec = d.Timeouts.CommandExec
	}

	return c
}
