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
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/addonlint/services/lint/findings"
)

type ruleRow struct {
	ID        string `json:"id"`
	AppliesTo string `json:"applies_to"`
	Severity  string `json:"severity"`
	Key       string `json:"key"`
}

func rulesCmd(a *app) *cobra.Command {
	var asJSON, entities bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the loaded rules or entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}
			out := cmd.OutOrStdout()

			if entities {
				paths := cat.Entities.Paths()
				if asJSON {
					return json.NewEncoder(out).Encode(paths)
				}
				for _, p := range paths {
					fmt.Fprintln(out, p)
				}
				return nil
			}

			var rows []ruleRow
			for _, r := range cat.Rules() {
				sev := r.Metadata.Severity
				if sev == "" {
					sev = findings.SeverityWarning
				}
				rows = append(rows, ruleRow{
					ID:        r.Metadata.ID.String(),
					AppliesTo: r.Metadata.AppliesTo.String(),
					Severity:  string(sev),
					Key:       r.Key.String(),
				})
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSEVERITY\tKEY")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.AppliesTo, r.Severity, r.Key)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	cmd.Flags().BoolVar(&entities, "entities", false, "List entity paths instead of rules")
	return cmd
}
