/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/autorj/internal/catalog"
)

var validateCatalogCmd = &cobra.Command{
	Use:   "validate-catalog",
	Short: "Load and validate the configured track catalog without starting the broadcaster",
	RunE:  runValidateCatalog,
}

func init() {
	rootCmd.AddCommand(validateCatalogCmd)
}

func runValidateCatalog(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	tracks, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog invalid: %w", err)
	}

	fmt.Printf("catalog OK: %d tracks\n", len(tracks))
	return nil
}
