// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewValidateCatalogCmd creates the validate-catalog subcommand.
func NewValidateCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-catalog [file]",
		Short: "Validate an attribute catalog without starting the server",
		Long: `Validates an attribute catalog file against the catalog JSON Schema
and the same domain rules seeding applies (data types, value parsing,
constraint bounds). Does NOT require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch catalog errors early:
  attrdesk validate-catalog deploy/catalog.yaml

Without an argument the catalog configured under catalog.path is
validated, falling back to the catalog embedded in the binary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidateCatalog,
	}
}

func runValidateCatalog(cmd *cobra.Command, args []string) error {
	var flagPath string
	if len(args) == 1 {
		flagPath = args[0]
	}

	var configPath string
	if flagPath == "" {
		appCfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		configPath = appCfg.Catalog.Path
	}

	cat, err := loadCatalog(flagPath, configPath)
	if err != nil {
		return err
	}

	for _, e := range cat.Attributes {
		cmd.Printf("  %s (%s)\n", e.Name, e.DataType)
	}
	cmd.Printf("Catalog valid: %d attributes, catalog version %s\n", len(cat.Attributes), cat.CatalogVersion)
	return nil
}
