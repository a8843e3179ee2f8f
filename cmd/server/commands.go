package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"task-manager/server/internal/app"
	"task-manager/server/internal/config"
	"task-manager/server/internal/logger"
	"task-manager/server/internal/server"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	port     string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "task-server",
		Short: "Task management REST API",
		Long: `Task management REST API with per-user task lists, due-date
categorization and a server-sent event stream of task changes.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.port, "port", "", "listen port (overrides PORT)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newHealthcheckCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newHealthcheckCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Query /health on a running server and exit non-zero if unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			host := cfg.Server.Host
			if host == "" {
				host = "127.0.0.1"
			}
			return checkHealth(cmd.Context(), fmt.Sprintf("http://%s:%s/health", host, cfg.Server.Port), timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"redis_enabled", cfg.Redis.Enabled,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to close connections", "error", err)
		}
	}()

	srv := server.New(cfg.Server, application.Handler(), log)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func checkHealth(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}
	return nil
}
