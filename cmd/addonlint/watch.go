// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/report"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
	"github.com/AleutianAI/addonlint/services/lint/watch"
)

func watchCmd(a *app) *cobra.Command {
	var supported []string
	var bootstrapped bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-scan files as they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := compat.ParseSupported(supported)
			if err != nil {
				return err
			}
			sc, err := a.newScanner(cmd.Context())
			if err != nil {
				return err
			}

			tmpl := findings.NewBundle()
			if apps != nil {
				tmpl.SetSupportedApps(apps)
			}
			tmpl.SetResource("em:bootstrap", bootstrapped)

			w, err := watch.New(sc, watch.Config{
				Root:     args[0],
				Debounce: debounce,
				Template: tmpl,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color := useColor(out)
			for ev := range w.Events() {
				switch {
				case ev.Op == watch.OpDelete:
					fmt.Fprintf(out, "removed %s\n", ev.Path)
				case ev.Err != nil:
					fmt.Fprintf(out, "%s: %v\n", ev.Path, ev.Err)
				default:
					fmt.Fprintf(out, "== %s\n", ev.Path)
					r := report.NewResult(uuid.NewString(), scanner.Stats{Scanned: 1}, ev.Findings, false)
					if err := report.WriteText(out, r, color); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&supported, "supported", nil, "Supported application range, app=min-max (repeatable)")
	cmd.Flags().BoolVar(&bootstrapped, "bootstrapped", false, "Treat the package as bootstrapped")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Delay before re-scanning changed files")
	return cmd
}
