package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/attrdesk/attrdesk/internal/attribute"
	"github.com/attrdesk/attrdesk/internal/store"
)

// Default timeout for status queries.
const defaultStatusTimeout = 10 * time.Second

// StoreStatus holds the status information for the backing store.
type StoreStatus struct {
	Reachable        bool   `json:"reachable"`
	MigrationVersion uint   `json:"migration_version"`
	Dirty            bool   `json:"dirty,omitempty"`
	Error            string `json:"error,omitempty"`
}

// AttributeCounts holds definition counts by origin and state.
type AttributeCounts struct {
	Total    int `json:"total"`
	System   int `json:"system"`
	Custom   int `json:"custom"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// ServiceStatus is the full report printed by the status command.
type ServiceStatus struct {
	Store StoreStatus `json:"store"`
	// Attributes is nil when the store is unreachable.
	Attributes *AttributeCounts `json:"attributes,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store reachability, migration version, and attribute counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatusWithDeps(cmd, cfg, nil)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultStatusTimeout, "timeout for status queries")
	registerConfigFlags(cmd.Flags())

	return cmd
}

// runStatusWithDeps executes the status command with injectable
// dependencies. An unreachable store is reported, not returned as an
// error; only unusable configuration fails the command.
func runStatusWithDeps(cmd *cobra.Command, cfg *statusConfig, deps *StatusDeps) error {
	if deps == nil {
		deps = &StatusDeps{}
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
	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	status := queryServiceStatus(ctx, deps, databaseURL, appCfg.Database.MaxConns)

	var output string
	if cfg.jsonOutput {
		output, err = formatStatusJSON(status)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(status)
	}

	cmd.Println(output)
	return nil
}

// queryServiceStatus gathers the report, degrading to an error field
// when the store cannot be reached.
func queryServiceStatus(ctx context.Context, deps *StatusDeps, databaseURL string, maxConns int32) ServiceStatus {
	var status ServiceStatus

	pool, err := deps.PoolFactory(ctx, store.PoolConfig{URL: databaseURL, MaxConns: maxConns})
	if err != nil {
		status.Store.Error = fmt.Sprintf("connect: %v", err)
		return status
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		status.Store.Error = fmt.Sprintf("ping: %v", err)
		return status
	}
	status.Store.Reachable = true

	if migrator, err := deps.MigratorFactory(databaseURL); err != nil {
		status.Store.Error = fmt.Sprintf("migrator: %v", err)
	} else {
		version, dirty, verErr := migrator.Version()
		if verErr != nil {
			status.Store.Error = fmt.Sprintf("migration version: %v", verErr)
		} else {
			status.Store.MigrationVersion = version
			status.Store.Dirty = dirty
		}
		_ = migrator.Close() //nolint:errcheck // report already gathered
	}

	repo, err := deps.RepositoryFactory(pool)
	if err != nil {
		status.Store.Error = fmt.Sprintf("repository: %v", err)
		return status
	}
	counts, err := countAttributes(ctx, repo)
	if err != nil {
		status.Store.Error = fmt.Sprintf("count attributes: %v", err)
		return status
	}
	status.Attributes = counts

	return status
}

// countAttributes tallies definitions by origin and active state.
func countAttributes(ctx context.Context, repo attribute.Repository) (*AttributeCounts, error) {
	total, err := repo.Count(ctx, attribute.ListOptions{})
	if err != nil {
		return nil, err
	}

	system := true
	systemCount, err := repo.Count(ctx, attribute.ListOptions{IsSystem: &system})
	if err != nil {
		return nil, err
	}

	active := true
	activeCount, err := repo.Count(ctx, attribute.ListOptions{Active: &active})
	if err != nil {
		return nil, err
	}

	return &AttributeCounts{
		Total:    total,
		System:   systemCount,
		Custom:   total - systemCount,
		Active:   activeCount,
		Inactive: total - activeCount,
	}, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintln(w, "-----\t-----")

	if status.Store.Reachable {
		_, _ = fmt.Fprintf(w, "store\treachable\n")
		migration := fmt.Sprintf("%d", status.Store.MigrationVersion)
		if status.Store.Dirty {
			migration += " (dirty - manual repair required)"
		}
		_, _ = fmt.Fprintf(w, "migration version\t%s\n", migration)
	} else {
		reason := "unreachable"
		if status.Store.Error != "" {
			reason = status.Store.Error
		}
		_, _ = fmt.Fprintf(w, "store\t%s\n", reason)
	}
	if status.Store.Reachable && status.Store.Error != "" {
		_, _ = fmt.Fprintf(w, "warning\t%s\n", status.Store.Error)
	}

	if status.Attributes != nil {
		_, _ = fmt.Fprintf(w, "attributes total\t%d\n", status.Attributes.Total)
		_, _ = fmt.Fprintf(w, "attributes system\t%d\n", status.Attributes.System)
		_, _ = fmt.Fprintf(w, "attributes custom\t%d\n", status.Attributes.Custom)
		_, _ = fmt.Fprintf(w, "attributes active\t%d\n", status.Attributes.Active)
		_, _ = fmt.Fprintf(w, "attributes inactive\t%d\n", status.Attributes.Inactive)
	}

	_ = w.Flush()
	return string(buf)
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
