package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/internal/attribute/postgres"
	"github.com/attrdesk/attrdesk/internal/config"
	"github.com/attrdesk/attrdesk/internal/httpapi"
	"github.com/attrdesk/attrdesk/internal/observability"
	"github.com/attrdesk/attrdesk/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database connection pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)

	// ServiceFactory assembles the attribute service over the pool.
	// Default: postgres repository and usage oracle wired through
	// attribute.NewService
	ServiceFactory func(pool Pool, cfg config.Config) (*attribute.Service, error)

	// APIServerFactory creates the administrative HTTP server.
	// Default: httpapi.NewServer
	APIServerFactory func(addr string, api *httpapi.API) HTTPServer

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) HTTPServer

	// WatcherFactory creates the config file watcher for log-level hot
	// reload. Default: config.NewWatcher
	WatcherFactory func(path string, reload func(path string) error, log *slog.Logger) (ConfigWatcher, error)
}

// SeedDeps contains injectable dependencies for the seed command.
// All fields with nil values will use their default implementations.
type SeedDeps struct {
	// PoolFactory opens the database connection pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)

	// RepositoryFactory builds the attribute repository over the pool.
	// Default: postgres.NewRepository
	RepositoryFactory func(pool Pool) (attribute.Repository, error)
}

// StatusDeps contains injectable dependencies for the status command.
// All fields with nil values will use their default implementations.
type StatusDeps struct {
	// PoolFactory opens the database connection pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (Pool, error)

	// MigratorFactory creates a schema migrator for version inspection.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)

	// RepositoryFactory builds the attribute repository over the pool.
	// Default: postgres.NewRepository
	RepositoryFactory func(pool Pool) (attribute.Repository, error)
}

// Pool interface wraps the pgxpool.Pool methods the CLI uses directly.
type Pool interface {
	Ping(ctx context.Context) error
	Close()
}

// SchemaMigrator interface wraps the methods used from store.Migrator.
type SchemaMigrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
}

// HTTPServer interface wraps the lifecycle methods shared by
// httpapi.Server and observability.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ConfigWatcher interface wraps the methods used from config.Watcher.
type ConfigWatcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// pgxPoolFrom unwraps the concrete pool the postgres repository needs.
// Injected fakes satisfy Pool but not pgxpool; commands that take the
// default path always hold the real thing.
func pgxPoolFrom(pool Pool) (*pgxpool.Pool, error) {
	pgxPool, ok := pool.(*pgxpool.Pool)
	if !ok {
		return nil, oops.Errorf("pool %T does not expose a pgx pool", pool)
	}
	return pgxPool, nil
}

func defaultPoolFactory(ctx context.Context, cfg store.PoolConfig) (Pool, error) {
	return store.Connect(ctx, cfg)
}

func defaultMigratorFactory(databaseURL string) (SchemaMigrator, error) {
	return store.NewMigrator(databaseURL)
}

func defaultServiceFactory(pool Pool, cfg config.Config) (*attribute.Service, error) {
	pgxPool, err := pgxPoolFrom(pool)
	if err != nil {
		return nil, err
	}
	validator, err := attribute.NewValidator(cfg.Attributes.ReservedNamePatterns)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return attribute.NewService(attribute.ServiceConfig{
		Repo:        postgres.NewRepository(pgxPool),
		Oracle:      postgres.NewPolicyRefOracle(pgxPool),
		Validator:   validator,
		BulkWorkers: cfg.Attributes.BulkWorkers,
	}), nil
}

func defaultRepositoryFactory(pool Pool) (attribute.Repository, error) {
	pgxPool, err := pgxPoolFrom(pool)
	if err != nil {
		return nil, err
	}
	return postgres.NewRepository(pgxPool), nil
}
