// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint exposes the add-on scanner over HTTP.
package lint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/report"
	"github.com/AleutianAI/addonlint/services/lint/rules"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

// ErrInvalidRequest indicates a scan request that cannot be served.
var ErrInvalidRequest = errors.New("invalid scan request")

// BootstrapResource is the bundle resource set for bootstrapped packages.
const BootstrapResource = "em:bootstrap"

var tracer = otel.Tracer("addonlint.lint.service")

// Service runs scans for the HTTP handlers.
//
// Thread Safety: Safe for concurrent use. Every Scan call owns its bundle.
type Service struct {
	scanner *scanner.Scanner
	logger  *slog.Logger
}

// NewService creates a Service over sc. A nil logger uses slog.Default().
func NewService(sc *scanner.Scanner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scanner: sc, logger: logger}
}

// Scan scans the request's files and summarizes the findings.
//
// Description:
//
//	Applies the declared supported-application matrix and bootstrap flag
//	to a fresh bundle, scans every file, and returns the report. Files the
//	scanner cannot handle are listed in Result.Skipped.
//
// Inputs:
//
//	ctx - Cancels the scan between files.
//	req - The request. Files must be non-empty.
//
// Outputs:
//
//	report.Result - Findings and summaries, with a fresh run ID.
//	error - Wraps ErrInvalidRequest for bad input, or the cancellation error.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (report.Result, error) {
	ctx, span := tracer.Start(ctx, "lint.Service.Scan")
	defer span.End()

	if len(req.Files) == 0 {
		return report.Result{}, fmt.Errorf("%w: no files", ErrInvalidRequest)
	}
	supported, err := req.SupportedApps.Normalize()
	if err != nil {
		return report.Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	runID := uuid.NewString()
	b := findings.NewBundle()
	if supported != nil {
		b.SetSupportedApps(supported)
	}
	b.SetResource(BootstrapResource, req.Bootstrapped)

	files := make([]scanner.File, len(req.Files))
	for i, f := range req.Files {
		files[i] = scanner.File{Name: f.Name, Content: []byte(f.Content)}
	}

	stats, err := s.scanner.ScanFiles(ctx, files, b)
	if err != nil {
		span.RecordError(err)
		return report.Result{}, err
	}

	result := report.NewResult(runID, stats, b, req.FailOnWarnings == nil || *req.FailOnWarnings)
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("files", len(files)),
		attribute.Int("findings", len(result.Findings)),
		attribute.Bool("failed", result.Failed),
	)
	s.logger.Info("scan request complete",
		slog.String("run_id", runID),
		slog.Int("files", len(files)),
		slog.Int("findings", len(result.Findings)),
		slog.Bool("failed", result.Failed),
	)
	return result, nil
}

// Rules lists catalog rules, optionally only those applying to kind. A
// zero kind lists all rules.
func (s *Service) Rules(kind rules.ContentKind) []RuleInfo {
	all := s.scanner.Catalog().Rules()
	out := make([]RuleInfo, 0, len(all))
	for _, r := range all {
		m := r.Metadata
		if kind != 0 && !m.AppliesTo.Allows(kind) {
			continue
		}
		sev := string(m.Severity)
		if sev == "" {
			sev = string(findings.SeverityWarning)
		}
		out = append(out, RuleInfo{
			ID:                m.ID.String(),
			Key:               r.Key.String(),
			AppliesTo:         m.AppliesTo.String(),
			Severity:          sev,
			Message:           m.Message,
			Tier:              m.Tier,
			CompatibilityType: string(m.CompatibilityType),
			SigningSeverity:   string(m.SigningSeverity),
			GateApps:          m.Gate.AppIDs(),
		})
	}
	return out
}

// Entities lists registered entity paths containing filter. An empty
// filter lists everything.
func (s *Service) Entities(filter string) []string {
	paths := s.scanner.Catalog().Entities.Paths()
	if filter == "" {
		return paths
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.Contains(p, filter) {
			out = append(out, p)
		}
	}
	return out
}

// Counts returns the number of rules and entities loaded.
func (s *Service) Counts() (rulesN, entities int) {
	cat := s.scanner.Catalog()
	return len(cat.Rules()), cat.Entities.Len()
}
