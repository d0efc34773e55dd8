// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders scan results as JSON or terminal text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

// Result is the serialized outcome of one scan run.
type Result struct {
	RunID          string                             `json:"run_id"`
	Files          int                                `json:"files"`
	Summary        findings.Summary                   `json:"summary"`
	SigningSummary map[findings.SigningSeverity]int   `json:"signing_summary"`
	CompatSummary  map[findings.CompatibilityType]int `json:"compatibility_summary"`
	Findings       []findings.Finding                 `json:"messages"`
	Skipped        []scanner.SkippedFile              `json:"skipped,omitempty"`
	Failed         bool                               `json:"failed"`
}

// NewResult builds a Result from a finished bundle.
//
// Inputs:
//
//	runID - Identifier of the run, echoed back to callers.
//	stats - Scanner statistics.
//	b - The merged findings.
//	failOnWarnings - Whether warnings make the run fail.
func NewResult(runID string, stats scanner.Stats, b *findings.Bundle, failOnWarnings bool) Result {
	all := b.Findings()
	if all == nil {
		all = []findings.Finding{}
	}
	return Result{
		RunID:          runID,
		Files:          stats.Scanned,
		Summary:        b.Summary(),
		SigningSummary: b.SigningSummary(),
		CompatSummary:  b.CompatSummary(),
		Findings:       all,
		Skipped:        stats.Skipped,
		Failed:         b.Failed(failOnWarnings),
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleNotice  = lipgloss.NewStyle().Faint(true)
	styleFile    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleDetail  = lipgloss.NewStyle().Faint(true)
)

var severityOrder = map[findings.Severity]int{
	findings.SeverityError:   0,
	findings.SeverityWarning: 1,
	findings.SeverityNotice:  2,
}

// WriteText writes a human-readable report, errors first.
//
// Description:
//
//	Findings keep their scan order within a severity. When color is false
//	the output carries no escape sequences.
func WriteText(w io.Writer, r Result, color bool) error {
	var b strings.Builder

	if len(r.Findings) == 0 {
		b.WriteString("No findings.\n")
	}

	sorted := make([]findings.Finding, len(r.Findings))
	copy(sorted, r.Findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityOrder[sorted[i].Severity] < severityOrder[sorted[j].Severity]
	})

	for _, f := range sorted {
		fmt.Fprintf(&b, "%s  %s\n", severityLabel(f.Severity, color), f.Message)
		if loc := location(f.Location); loc != "" {
			fmt.Fprintf(&b, "    %s\n", paint(styleFile, loc, color))
		}
		var tags []string
		tags = append(tags, f.ID.String())
		if f.CompatibilityType != findings.CompatNone {
			tags = append(tags, "compat:"+string(f.CompatibilityType))
		}
		if f.SigningSeverity != findings.SigningNone {
			tags = append(tags, "signing:"+string(f.SigningSeverity))
		}
		fmt.Fprintf(&b, "    %s\n\n", paint(styleDetail, strings.Join(tags, " "), color))
	}

	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "skipped %s: %s\n", s.Name, s.Reason)
	}

	fmt.Fprintf(&b, "%d file(s), %d error(s), %d warning(s), %d notice(s)\n",
		r.Files, r.Summary.Errors, r.Summary.Warnings, r.Summary.Notices)
	fmt.Fprintf(&b, "signing: high=%d medium=%d low=%d  compatibility: error=%d warning=%d\n",
		r.SigningSummary[findings.SigningHigh], r.SigningSummary[findings.SigningMedium],
		r.SigningSummary[findings.SigningLow],
		r.CompatSummary[findings.CompatError], r.CompatSummary[findings.CompatWarning])

	_, err := io.WriteString(w, b.String())
	return err
}

func location(l findings.Location) string {
	switch {
	case l.File == "":
		return ""
	case l.Line == 0:
		return l.File
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
}

func severityLabel(s findings.Severity, color bool) string {
	label := fmt.Sprintf("%-7s", strings.ToUpper(string(s)))
	if !color {
		return label
	}
	switch s {
	case findings.SeverityError:
		return styleError.Render(label)
	case findings.SeverityWarning:
		return styleWarning.Render(label)
	default:
		return styleNotice.Render(label)
	}
}

func paint(style lipgloss.Style, s string, color bool) string {
	if !color {
		return s
	}
	return style.Render(s)
}
