// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/attrdesk/attrdesk/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back, or inspect the schema migrations embedded in the binary.`,
	}

	registerConfigFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Long: `Roll back every migration to version 0.
WARNING: this drops every table this service owns, data included.`,
			RunE: runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			RunE:  runMigrateStatus,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the migration version without running migrations",
			Long: `Set the recorded migration version without running any SQL.
Use only to recover from a dirty state after repairing the database by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: runMigrateForce,
		},
	)

	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m SchemaMigrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m SchemaMigrator) error {
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m SchemaMigrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			cmd.Printf("Migration version: %d (dirty - manual repair required)\n", version)
			return nil
		}
		cmd.Printf("Migration version: %d\n", version)
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	return withMigrator(cmd, func(m SchemaMigrator) error {
		if err := m.Force(version); err != nil {
			return err
		}
		cmd.Printf("Migration version forced to %d\n", version)
		return nil
	})
}

// withMigrator resolves the database URL, builds a migrator over it,
// and hands it to fn, closing it afterwards.
func withMigrator(cmd *cobra.Command, fn func(SchemaMigrator) error) error {
	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return fn(migrator)
}

// resolveDatabaseURL finds the connection string: configuration (file or
// --database.url flag) first, the DATABASE_URL environment variable as a
// fallback.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL != "" {
		return cfg.Database.URL, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("database URL is required (config file, --database.url, or DATABASE_URL)")
}

// parseForceVersion parses the version argument for migrate force.
// Sscanf semantics: leading whitespace is skipped and scanning stops at
// the first non-digit, so "3abc" parses as 3.
func parseForceVersion(input string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(input, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", input).Wrapf(err, "parse migration version")
	}
	return version, nil
}
