// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command addonlint scans browser add-on sources for review findings.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/addonlint/services/lint/catalog"
	"github.com/AleutianAI/addonlint/services/lint/config"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

const (
	Version = "0.1.0"
	appName = "addonlint"
)

// errScanFailed is returned by scan when the run fails review.
var errScanFailed = errors.New("scan failed")

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errScanFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries state shared by subcommands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func rootCmd() *cobra.Command {
	a := &app{cfg: config.Load()}
	var logLevel, rulesFile string
	var traceStdout bool

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Lint browser add-on sources",
		Long: `addonlint scans browser add-on packages for unsafe preferences, removed
and deprecated APIs, dangerous globals and unsafe template escapes.

Configuration is read from ADDONLINT_* environment variables; flags
override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("log-level") {
				a.cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("rules") {
				a.cfg.RulesFile = rulesFile
			}
			if cmd.Flags().Changed("trace") {
				a.cfg.TraceStdout = traceStdout
			}
			a.logger = config.NewLoggerTo(cmd.ErrOrStderr(), a.cfg)
			slog.SetDefault(a.logger)

			shutdown, err := setupTracing(a.cfg.TraceStdout, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.shutdown = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", a.cfg.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&rulesFile, "rules", a.cfg.RulesFile, "Rule catalog YAML replacing the built-in rules")
	cmd.PersistentFlags().BoolVar(&traceStdout, "trace", a.cfg.TraceStdout, "Export trace spans to stderr")

	cmd.AddCommand(
		scanCmd(a),
		serveCmd(a),
		rulesCmd(a),
		watchCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// loadCatalog returns the override catalog when configured, else the
// built-in one.
func (a *app) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.cfg.RulesFile != "" {
		return catalog.LoadFile(ctx, a.cfg.RulesFile, catalog.DefaultConstants())
	}
	return catalog.Default(ctx)
}

func (a *app) newScanner(ctx context.Context) (*scanner.Scanner, error) {
	cat, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return scanner.New(cat,
		scanner.WithLogger(a.logger),
		scanner.WithWorkers(a.cfg.Workers),
		scanner.WithMaxFileSize(a.cfg.MaxFileSize),
	), nil
}
