package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/attrdesk/attrdesk/internal/config"
	"github.com/attrdesk/attrdesk/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the attrdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attrdesk",
		Short: "AttrDesk - attribute definition administration service",
		Long: `AttrDesk manages the attribute definitions that access policies are
written against: their data types, constrained value sets, categories,
and lifecycle (create, update, activate, delete with usage guards).`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: discovered under the XDG config dir)")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewValidateCatalogCmd())

	return cmd
}

// resolveConfigPath returns the config file to load: the --config flag
// when given, otherwise the XDG default if such a file exists. An empty
// result means run on defaults and flags alone.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	def := xdg.DefaultConfigPath()
	if _, err := os.Stat(def); err == nil {
		return def
	}
	return ""
}

// registerConfigFlags declares the flag overrides shared by commands
// that load configuration. Flag names mirror koanf paths so posflag can
// map them; defaults mirror config.Default() so an unset flag never
// changes the effective value.
func registerConfigFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("server.addr", d.Server.Addr, "administrative API listen address")
	fs.String("metrics.addr", d.Metrics.Addr, "metrics and health listen address")
	fs.String("database.url", d.Database.URL, "postgres connection URL")
	fs.Bool("database.auto_migrate", d.Database.AutoMigrate, "run pending migrations on startup")
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log.format", d.Log.Format, "log format (json or text)")
}

// loadConfig merges defaults, the resolved config file, and any flag
// overrides registered on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(resolveConfigPath(), cmd.Flags())
}
