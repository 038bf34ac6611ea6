/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/autorj/internal/config"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "radiojockey",
	Short: "An autonomous radio jockey broadcaster",
	Long:  "radiojockey builds and streams an unattended radio broadcast: shuffled songs interleaved with generated commentary, pushed to an RTMP endpoint, with a live dashboard API.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cfg = loaded
	logger = newLogger(cfg.Environment)
	return nil
}
