package pkg

// ProjectConfig is the flux.json file the CLI keeps in a project directory.
type ProjectConfig struct {
	ID          int64  `json:"id,omitempty"`
	Slug        string `json:"slug,omitempty"`
	Framework   string `json:"framework,omitempty"`
	Environment string `json:"environment,omitempty"`
	Port        int    `json:"port,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Runtime     string `json:"runtime,omitempty"`
	ServerID    int64  `json:"server_id,omitempty"`
	EnvFile     string `json:"env_file,omitempty"`
}
