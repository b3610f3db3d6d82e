// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/attrdesk/attrdesk/internal/catalog"
	"github.com/attrdesk/attrdesk/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	dryRun      bool
	catalogPath string
	createdBy   string
	timeout     time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the store with the system attribute catalog",
		Long: `Loads the attribute catalog into the database, skipping names that
already exist. This command is idempotent - it will not create
duplicates if run multiple times.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate and report what would change without writing")
	cmd.Flags().StringVar(&cfg.catalogPath, "catalog", "", "catalog file (default: catalog.path from config, else the embedded catalog)")
	cmd.Flags().StringVar(&cfg.createdBy, "created-by", "", "audit identity recorded on created attributes (default: system)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	registerConfigFlags(cmd.Flags())

	return cmd
}

// runSeedWithDeps seeds the catalog with injectable dependencies.
// If deps is nil, default implementations are used.
func runSeedWithDeps(cmd *cobra.Command, cfg *seedConfig, deps *SeedDeps) error {
	if deps == nil {
		deps = &SeedDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = defaultPoolFactory
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = defaultMigratorFactory
	}
	if deps.RepositoryFactory == nil {
		deps.RepositoryFactory = defaultRepositoryFactory
	}

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cat, err := loadCatalog(cfg.catalogPath, appCfg.Catalog.Path)
	if err != nil {
		return err
	}
	cmd.Printf("Catalog valid: %d attributes\n", len(cat.Attributes))

	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM; the timeout prevents
	// indefinite hangs against an unresponsive database.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := deps.PoolFactory(ctx, store.PoolConfig{
		URL:      databaseURL,
		MaxConns: appCfg.Database.MaxConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	if err := runAutoMigrate(deps.MigratorFactory, databaseURL); err != nil {
		return err
	}

	repo, err := deps.RepositoryFactory(pool)
	if err != nil {
		return err
	}

	res, err := catalog.Seed(ctx, repo, cat, catalog.SeedOptions{
		DryRun:    cfg.dryRun,
		CreatedBy: cfg.createdBy,
	})
	if err != nil {
		return err
	}

	verb := "Created"
	if cfg.dryRun {
		verb = "Would create"
	}
	for _, name := range res.Created {
		cmd.Printf("%s %s\n", verb, name)
	}
	for _, name := range res.Skipped {
		cmd.Printf("Skipped %s (already exists)\n", name)
	}

	if cfg.dryRun {
		cmd.Printf("Dry run complete: %d to create, %d already present\n", len(res.Created), len(res.Skipped))
		return nil
	}
	cmd.Printf("Seeding complete: %d created, %d skipped\n", len(res.Created), len(res.Skipped))
	return nil
}

// loadCatalog picks the catalog source: the --catalog flag wins, then
// the configured path, then the catalog embedded in the binary.
func loadCatalog(flagPath, configPath string) (*catalog.Catalog, error) {
	path := flagPath
	if path == "" {
		path = configPath
	}
	if path != "" {
		return catalog.ParseFile(path)
	}
	return catalog.Default()
}
