package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juls0730/fluxops/pkg/logger"
	"github.com/juls0730/fluxops/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var v *viper.Viper

func main() {
	var rootDir string

	rootCmd := &cobra.Command{
		Use:           "fluxd",
		Short:         "Deploy and run projects on remote servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", server.RootDir(), "fluxd state directory (FLUXD_ROOT_DIR)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fluxd HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	serveCmd.Flags().String("listen", server.DefaultListenAddr, "address to listen on")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the fluxd database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	// bare `fluxd` keeps serving like it always has
	rootCmd.RunE = serveCmd.RunE

	cobra.OnInitialize(func() {
		v = server.NewViper(rootDir)
		if flag := serveCmd.Flags().Lookup("listen"); flag != nil && flag.Changed {
			v.Set("listen_addr", flag.Value.String())
		}
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fluxd: %v\n", err)
		os.Exit(1)
	}
}

func load() (server.Config, *zap.Logger, zap.AtomicLevel, error) {
	config, created, err := server.LoadConfig(v)
	if err != nil {
		return config, nil, zap.AtomicLevel{}, err
	}

	log, level, err := logger.NewLogger(config.Dev)
	if err != nil {
		return config, nil, level, fmt.Errorf("failed to create logger: %w", err)
	}

	if created {
		log.Sugar().Infof("Config file not found, created default config file at %s", v.ConfigFileUsed())
	}

	return config, log, level, nil
}

func serve() error {
	config, log, level, err := load()
	if err != nil {
		return err
	}
	defer log.Sync()

	sugar := log.Sugar()
	server.WatchConfig(v, level, sugar)

	fluxServer, err := server.NewServer(config, sugar)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- fluxServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		_ = fluxServer.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fluxServer.Stop(shutdownCtx)
}

func migrate() error {
	config, log, _, err := load()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := server.OpenStore(config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Sugar().Infow("Database schema is up to date", "database", config.Database)
	return nil
}
