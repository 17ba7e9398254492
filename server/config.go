package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/juls0730/fluxops/deploy"
	"github.com/juls0730/fluxops/docker"
	"github.com/juls0730/fluxops/pkg/logger"
	"github.com/juls0730/fluxops/remote"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultRootDir    = "/var/fluxd"
	DefaultListenAddr = ":5647"
)

type Config struct {
	ListenAddr string             `mapstructure:"listen_addr"`
	RootDir    string             `mapstructure:"root_dir"`
	Database   string             `mapstructure:"database"`
	Dev        bool               `mapstructure:"dev"`
	Engine     docker.Config      `mapstructure:"engine"`
	SSH        remote.SSHConfig   `mapstructure:"ssh"`
	Deploy     deploy.Config      `mapstructure:"deploy"`
	Redis      deploy.RedisConfig `mapstructure:"redis"`
}

func RootDir() string {
	rootDir := os.Getenv("FLUXD_ROOT_DIR")
	if rootDir == "" {
		rootDir = DefaultRootDir
	}

	return rootDir
}

// NewViper prepares a viper instance reading {rootDir}/config.json with
// FLUXD_ environment overrides, e.g. FLUXD_REDIS_ADDR.
func NewViper(rootDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Join(rootDir, "config.json"))
	v.SetEnvPrefix("FLUXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, rootDir)

	return v
}

func setDefaults(v *viper.Viper, rootDir string) {
	engine := docker.DefaultConfig()
	run := deploy.DefaultConfig()

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("root_dir", rootDir)
	v.SetDefault("database", filepath.Join(rootDir, "fluxd.db"))
	v.SetDefault("dev", false)

	v.SetDefault("engine.projects_root", engine.ProjectsRoot)
	v.SetDefault("engine.compose_file", engine.ComposeFile)
	v.SetDefault("engine.fallback_port_base", engine.FallbackPortBase)
	v.SetDefault("engine.timeouts.docker_build", engine.Timeouts.DockerBuild.String())
	v.SetDefault("engine.timeouts.compose_build", engine.Timeouts.ComposeBuild.String())
	v.SetDefault("engine.timeouts.compose_start", engine.Timeouts.ComposeStart.String())
	v.SetDefault("engine.timeouts.compose_cleanup", engine.Timeouts.ComposeCleanup.String())
	v.SetDefault("engine.timeouts.command_exec", engine.Timeouts.CommandExec.String())

	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.connect_timeout", remote.DefaultConnectTimeout.String())
	v.SetDefault("ssh.kill_grace", remote.DefaultKillGrace.String())

	v.SetDefault("deploy.run_ttl", run.RunTTL.String())
	v.SetDefault("deploy.marker_ttl", run.MarkerTTL.String())
	v.SetDefault("deploy.php_fpm_service", run.PHPFPMService)
	v.SetDefault("deploy.timeouts.git_pull", run.Timeouts.GitPull.String())
	v.SetDefault("deploy.timeouts.install", run.Timeouts.Install.String())
	v.SetDefault("deploy.timeouts.asset_build", run.Timeouts.AssetBuild.String())
	v.SetDefault("deploy.timeouts.artisan", run.Timeouts.Artisan.String())

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// LoadConfig reads the config file, writing one with the defaults first if
// it does not exist yet. created reports whether that happened.
func LoadConfig(v *viper.Viper) (config Config, created bool, err error) {
	configPath := v.ConfigFileUsed()
	if _, err := os.Stat(configPath); err != nil {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return config, false, fmt.Errorf("failed to create fluxd directory: %w", err)
		}

		// env overrides stay off disk
		defaults := viper.New()
		setDefaults(defaults, filepath.Dir(configPath))
		if err := defaults.WriteConfigAs(configPath); err != nil {
			return config, false, fmt.Errorf("failed to write config file: %w", err)
		}
		created = true
	}

	if err := v.ReadInConfig(); err != nil {
		return config, created, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, created, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Deploy.ProjectsRoot = config.Engine.ProjectsRoot

	return config, created, nil
}

// WatchConfig follows edits to the config file. Only the log level is
// applied live, everything else needs a restart.
func WatchConfig(v *viper.Viper, level zap.AtomicLevel, log *zap.SugaredLogger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		dev := v.GetBool("dev")
		level.SetLevel(logger.LevelFor(dev))
		log.Infow("Config file changed", "path", e.Name, "dev", dev)
	})
	v.WatchConfig()
}
