package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metorial/minidash/internal/api"
	"github.com/metorial/minidash/internal/cache"
	"github.com/metorial/minidash/internal/config"
	"github.com/metorial/minidash/internal/connections"
	"github.com/metorial/minidash/internal/discovery"
	"github.com/metorial/minidash/internal/glances"
	"github.com/metorial/minidash/internal/logging"
	"github.com/metorial/minidash/internal/openclaw"
	"github.com/metorial/minidash/internal/server"
	"github.com/metorial/minidash/internal/store"
)

var version = "dev"

var (
	configPath string
	overrides  config.Overrides
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "minidash",
	Short: "Dashboard API for a single machine",
	Long: `minidash serves JSON endpoints for a local system dashboard.

It combines live metrics from Glances, history recorded by the collector in
SQLite and usage reported by the openclaw CLI.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func serve() error {
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := store.Open(cfg.Store.Path, cfg.Store.QueryTimeout.Duration)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()

	home, _ := os.UserHomeDir()
	runner := openclaw.ExecRunner{}
	resolver := openclaw.NewResolver(openclaw.Candidates(cfg.OpenClaw.Path, home), runner,
		cfg.OpenClaw.ProbeTimeout.Duration, logger)
	agent := openclaw.NewClient(resolver, runner, cfg.OpenClaw.Timeout.Duration, logger)

	a := api.New(api.Deps{
		Store:       db,
		Glances:     glances.New(cfg.Glances.URL, cfg.Glances.Timeout.Duration),
		OpenClaw:    agent,
		Connections: connections.NewLister(cfg.Connections.Command, cfg.Connections.Limit, cfg.Connections.Timeout.Duration, logger),
		Cache:       cache.New(logger),
		TTL:         cfg.Cache,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// warm the openclaw probe
	go resolver.Resolve(ctx)

	if cfg.Consul.Addr != "" {
		registrar, err := discovery.NewRegistrar(cfg.Consul.Addr, cfg.Consul.ServiceName,
			cfg.Server.Host, cfg.Server.Port, cfg.Server.GRPCPort, logger)
		if err != nil {
			logger.Warn("Consul disabled", zap.Error(err))
		} else if err := registrar.Register(); err != nil {
			logger.Warn("Failed to register with Consul", zap.Error(err))
		} else {
			defer registrar.Deregister()
		}
	}

	logger.Info("Starting minidash",
		zap.String("version", version),
		zap.String("addr", cfg.Addr()),
		zap.String("glances", cfg.Glances.URL),
		zap.String("db", cfg.Store.Path))

	return server.New(cfg, a, logger).Run(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&overrides.Host, "host", "", "Bind address (overrides HOST)")
	rootCmd.PersistentFlags().IntVarP(&overrides.Port, "port", "p", 0, "Listen port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&overrides.DBPath, "db", "", "History database path (overrides DB_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
