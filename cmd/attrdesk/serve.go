// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/attrdesk/attrdesk/internal/config"
	"github.com/attrdesk/attrdesk/internal/httpapi"
	"github.com/attrdesk/attrdesk/internal/logging"
	"github.com/attrdesk/attrdesk/internal/observability"
	"github.com/attrdesk/attrdesk/internal/store"
)

// readinessPingTimeout bounds the database ping behind /readyz so a
// stalled pool turns the probe red instead of hanging it.
const readinessPingTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the attribute administration service",
		Long: `Start the HTTP API for attribute definition management along with
the metrics and health endpoints. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	registerConfigFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.PoolFactory == nil {
		deps.PoolFactory = defaultPoolFactory
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = defaultMigratorFactory
	}
	if deps.ServiceFactory == nil {
		deps.ServiceFactory = defaultServiceFactory
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, api *httpapi.API) HTTPServer {
			return httpapi.NewServer(addr, api)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) HTTPServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.WatcherFactory == nil {
		deps.WatcherFactory = func(path string, reload func(path string) error, log *slog.Logger) (ConfigWatcher, error) {
			return config.NewWatcher(path, reload, log)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	logging.SetDefault("attrdesk", version, cfg.Log.Format, levelVar)

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (config file or --database.url)")
	}

	slog.Info("starting attrdesk",
		"server_addr", cfg.Server.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := deps.PoolFactory(ctx, store.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := runAutoMigrate(deps.MigratorFactory, cfg.Database.URL); err != nil {
			return err
		}
	}

	svc, err := deps.ServiceFactory(pool, cfg)
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrapf(err, "assemble attribute service")
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := httpapi.NewAPI(svc, slog.Default())
	apiServer := deps.APIServerFactory(cfg.Server.Addr, api)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").Wrapf(err, "start api server")
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessPingTimeout)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrChan, err := obsServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stopCancel()
		if stopErr := apiServer.Stop(stopCtx); stopErr != nil {
			slog.Warn("failed to stop api server during cleanup", "error", stopErr)
		}
		return oops.Code("SERVER_START_FAILED").Wrapf(err, "start observability server")
	}
	go monitorServerErrors(ctx, cancel, obsErrChan, "observability")

	slog.Info("observability server started", "addr", obsServer.Addr())

	// Hot-reload the log level when the config file changes. Without a
	// file there is nothing to watch.
	var watcher ConfigWatcher
	if path := resolveConfigPath(); path != "" {
		watcher, err = deps.WatcherFactory(path, func(changed string) error {
			return reloadLogLevel(changed, cmd, levelVar)
		}, slog.Default())
		if err != nil {
			slog.Warn("config watcher unavailable, log level is fixed", "error", err)
		} else if startErr := watcher.Start(ctx); startErr != nil {
			slog.Warn("config watcher failed to start, log level is fixed", "error", startErr)
			watcher = nil
		}
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Attribute service started")
	slog.Info("attrdesk ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", obsServer.Addr(),
	)

	// Wait for shutdown signal or a failed server
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			slog.Warn("error stopping config watcher", "error", err)
		}
	}

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}

	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// runAutoMigrate applies pending migrations before the service accepts
// traffic.
func runAutoMigrate(factory func(string) (SchemaMigrator, error), databaseURL string) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrapf(err, "create migrator")
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}

	slog.Info("migrations applied")
	return nil
}

// reloadLogLevel reloads the config file and applies its log level.
// Everything else requires a restart.
func reloadLogLevel(path string, cmd *cobra.Command, levelVar *slog.LevelVar) error {
	newCfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	newLevel, err := newCfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	if levelVar.Level() != newLevel {
		levelVar.Set(newLevel)
		slog.Info("log level changed", "level", newCfg.Log.Level)
	}
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
