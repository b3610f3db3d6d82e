// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package config loads, validates, and watches attrdesk configuration.
// Precedence is flags over file over defaults.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full attrdesk configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Database   DatabaseConfig   `koanf:"database"`
	Log        LogConfig        `koanf:"log"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Attributes AttributesConfig `koanf:"attributes"`
}

// ServerConfig configures the administrative HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the metrics/health listener.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the postgres pool.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	MaxConns    int32  `koanf:"max_conns"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// LogConfig configures structured logging. Level is reloadable at
// runtime; format is fixed for the process lifetime.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CatalogConfig points at the system-attribute catalog. An empty path
// uses the catalog embedded in the binary.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// AttributesConfig tunes attribute lifecycle behavior.
type AttributesConfig struct {
	// ReservedNamePatterns are globs; names matching any of them are
	// rejected on create so operator-defined attributes cannot shadow
	// system namespaces.
	ReservedNamePatterns []string `koanf:"reserved_name_patterns"`
	// BulkWorkers caps concurrent usage checks during bulk deletes.
	BulkWorkers int `koanf:"bulk_workers"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Database: DatabaseConfig{
			MaxConns: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Attributes: AttributesConfig{
			ReservedNamePatterns: []string{"sys.*"},
			BulkWorkers:          8,
		},
	}
}

// Load reads configuration from an optional YAML file and optional
// command-line flags. An empty path skips the file; flags may be nil.
// Flag names mirror koanf paths (e.g. --log.level).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrapf(err, "load config file")
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrapf(err, "apply flag overrides")
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrapf(err, "decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
// Database URL is intentionally not required here: commands that never
// touch the database (validate-catalog) share this loader.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr must not be empty")
	}
	if c.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics.addr must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Database.MaxConns < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("database.max_conns must not be negative, got %d", c.Database.MaxConns)
	}
	if c.Attributes.BulkWorkers < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("attributes.bulk_workers must be at least 1, got %d", c.Attributes.BulkWorkers)
	}
	for _, p := range c.Attributes.ReservedNamePatterns {
		if _, err := glob.Compile(p); err != nil {
			return oops.Code("CONFIG_INVALID").With("pattern", p).Wrapf(err, "reserved name pattern does not compile")
		}
	}
	return nil
}

// SlogLevel maps the configured level name onto slog's levels.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, oops.Code("CONFIG_INVALID").Errorf("unknown log level %q", c.Level)
}
