package deploy

import "time"

type Timeouts struct {
	GitPull    time.Duration `mapstructure:"git_pull" json:"git_pull"`
	Install    time.Duration `mapstructure:"install" json:"install"`
	AssetBuild time.Duration `mapstructure:"asset_build" json:"asset_build"`
	Artisan    time.Duration `mapstructure:"artisan" json:"artisan"`
}

type Config struct {
	ProjectsRoot  string        `mapstructure:"-" json:"-"`
	RunTTL        time.Duration `mapstructure:"run_ttl" json:"run_ttl"`
	MarkerTTL     time.Duration `mapstructure:"marker_ttl" json:"marker_ttl"`
	PHPFPMService string        `mapstructure:"php_fpm_service" json:"php_fpm_service"`
	Timeouts      Timeouts      `mapstructure:"timeouts" json:"timeouts"`
}

func DefaultConfig() Config {
	return Config{
		RunTTL:        time.Hour,
		MarkerTTL:     600 * time.Second,
		PHPFPMService: "php8.2-fpm",
		Timeouts: Timeouts{
			GitPull:    120 * time.Second,
			Install:    300 * time.Second,
			AssetBuild: 300 * time.Second,
			Artisan:    120 * time.Second,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RunTTL <= 0 {
		c.RunTTL = d.RunTTL
	}
	if c.MarkerTTL <= 0 {
		c.MarkerTTL = d.MarkerTTL
	}
	if c.PHPFPMService == "" {
		c.PHPFPMService = d.PHPFPMService
	}
	if c.Timeouts.GitPull <= 0 {
		c.Timeouts.GitPull = d.Timeouts.GitPull
	}
	if c.Timeouts.Install <= 0 {
		c.Timeouts.Install = d.Timeouts.Install
	}
	if c.Timeouts.AssetBuild <= 0 {
		c.Timeouts.AssetBuild = d.Timeouts.AssetBuild
	}
	if c.Timeouts.Artisan <= 0 {
		c.Timeouts.Artisan = d.Timeouts.Artisan
	}

	return c
}
