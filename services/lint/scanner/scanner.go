// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner applies the rule catalog and the script walker to files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/addonlint/services/lint/catalog"
	"github.com/AleutianAI/addonlint/services/lint/entity"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/jswalk"
	"github.com/AleutianAI/addonlint/services/lint/rules"
)

// ErrUnsupportedFile indicates a file the scanner does not handle: an
// unknown extension or a file over the size limit.
var ErrUnsupportedFile = errors.New("unsupported file")

const (
	// DefaultWorkers bounds concurrent file scans.
	DefaultWorkers = 4

	// DefaultMaxFileSize is the largest file scanned, in bytes.
	DefaultMaxFileSize = jswalk.DefaultMaxFileSize
)

// Content-kind globs, matched against the lowercased slash path.
const (
	ScriptGlob = "**/*.{js,jsm,mjs,cjs}"
	MarkupGlob = "**/*.{xul,xml,html,xhtml,htm,css,hbs,handlebars,rdf}"
)

var tracer = otel.Tracer("addonlint.lint.scanner")

// ClassifyFile returns the content kind of a file by its name.
func ClassifyFile(name string) (rules.ContentKind, bool) {
	p := strings.ToLower(path.Clean(strings.ReplaceAll(name, `\`, "/")))
	p = strings.TrimLeft(p, "/")
	if ok, _ := doublestar.Match(ScriptGlob, p); ok {
		return rules.KindScript, true
	}
	if ok, _ := doublestar.Match(MarkupGlob, p); ok {
		return rules.KindMarkup, true
	}
	return 0, false
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxFileSize sets the largest file scanned.
func WithMaxFileSize(size int) Option {
	return func(s *Scanner) {
		if size > 0 {
			s.maxFileSize = size
		}
	}
}

// WithWorkers bounds concurrent scans in ScanFiles.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithResources sets package-level resources, such as "em:bootstrap",
// consulted when the sink does not provide the key itself.
func WithResources(resources map[string]any) Option {
	return func(s *Scanner) {
		for k, v := range resources {
			s.resources[k] = v
		}
	}
}

// Scanner runs the rule catalog over files.
//
// Description:
//
//	Every file is matched against the regex rule set for its content kind.
//	Scripts are additionally walked to resolve entity references.
//
// Thread Safety: Safe for concurrent use. Sinks passed to ScanText and
// ScanFile must not be shared between concurrent calls.
type Scanner struct {
	catalog     *catalog.Catalog
	walker      *jswalk.Walker
	logger      *slog.Logger
	maxFileSize int
	workers     int
	resources   resourceMap
}

// New creates a Scanner over cat.
func New(cat *catalog.Catalog, opts ...Option) *Scanner {
	s := &Scanner{
		catalog:     cat,
		logger:      slog.Default(),
		maxFileSize: DefaultMaxFileSize,
		workers:     DefaultWorkers,
		resources:   resourceMap{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.walker = jswalk.New(cat.Entities,
		jswalk.WithMaxFileSize(s.maxFileSize),
		jswalk.WithLogger(s.logger),
		jswalk.WithServiceGetters(cat.Constants.Services),
	)
	return s
}

// Catalog returns the catalog the scanner runs.
func (s *Scanner) Catalog() *catalog.Catalog { return s.catalog }

// Resolve returns the entity handler for a symbol path.
func (s *Scanner) Resolve(path string) (entity.Handler, bool) {
	return s.catalog.Entities.Resolve(path)
}

// ScanText runs the regex rules for kind over subject.
//
// Outputs:
//
//	[]rules.Hit - The dispatched hits, in match order.
func (s *Scanner) ScanText(ctx context.Context, file, subject string, kind rules.ContentKind, sink findings.Sink) []rules.Hit {
	_, span := tracer.Start(ctx, "scanner.Scanner.ScanText")
	defer span.End()

	hits := s.catalog.RuleSet(kind).Dispatch(subject, rules.ScanContext{
		Kind: kind,
		File: file,
		Sink: countingSink{next: sink},
	})
	for _, h := range hits {
		ruleHitsTotal.WithLabelValues(ruleLabel(h)).Inc()
	}
	span.SetAttributes(
		attribute.String("file", file),
		attribute.String("kind", kind.String()),
		attribute.Int("hits", len(hits)),
	)
	return hits
}

// ScanFile scans one file, classifying it by name.
//
// Outputs:
//
//	error - Wraps ErrUnsupportedFile for unknown kinds or oversized files,
//	or a walker error. Regex findings are already in sink when the walker
//	fails.
func (s *Scanner) ScanFile(ctx context.Context, file string, content []byte, sink findings.Sink) error {
	kind, ok := ClassifyFile(file)
	if !ok {
		recordFile("unknown", "skipped")
		return fmt.Errorf("%s: %w: unknown content kind", file, ErrUnsupportedFile)
	}
	if len(content) > s.maxFileSize {
		recordFile(kind.String(), "skipped")
		return fmt.Errorf("%s: %w: %d bytes exceeds limit of %d", file, ErrUnsupportedFile, len(content), s.maxFileSize)
	}

	ctx, span := tracer.Start(ctx, "scanner.Scanner.ScanFile")
	defer span.End()
	span.SetAttributes(attribute.String("file", file), attribute.String("kind", kind.String()))

	start := time.Now()
	defer func() {
		scanDurationSeconds.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}()

	s.ScanText(ctx, file, string(content), kind, sink)

	if kind == rules.KindScript {
		in := jswalk.Input{File: file, Content: content, Resources: s.resources}
		if rp, ok := sink.(entity.ResourceProvider); ok {
			in.Resources = layeredResources{rp, s.resources}
		}
		if _, err := s.walker.Walk(ctx, in, countingSink{next: sink}); err != nil {
			recordFile(kind.String(), "error")
			span.RecordError(err)
			return fmt.Errorf("%s: %w", file, err)
		}
	}

	recordFile(kind.String(), "ok")
	return nil
}

// File is one named file body.
type File struct {
	Name    string
	Content []byte
}

// SkippedFile records a file that could not be scanned.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Stats summarizes a ScanFiles run.
type Stats struct {
	Scanned int           `json:"scanned"`
	Skipped []SkippedFile `json:"skipped,omitempty"`
}

// ScanFiles scans files concurrently and merges findings into bundle.
//
// Description:
//
//	Each file is scanned into its own bundle forked from bundle, so it sees
//	the same supported matrix and resources. Bundles are merged back in
//	input order, so the result does not depend on scheduling. A file that
//	fails to scan is logged and recorded in Stats; only cancellation
//	aborts the run.
//
// Inputs:
//
//	ctx - Checked between files.
//	files - Files to scan.
//	bundle - Receives the merged findings. Must not be nil.
//
// Outputs:
//
//	Stats - Scanned and skipped files.
//	error - Non-nil only if ctx was canceled.
//
// Thread Safety: Safe for concurrent use with distinct bundles.
func (s *Scanner) ScanFiles(ctx context.Context, files []File, bundle *findings.Bundle) (Stats, error) {
	ctx, span := tracer.Start(ctx, "scanner.Scanner.ScanFiles")
	defer span.End()

	results := make([]*findings.Bundle, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			child := bundle.Fork()
			errs[i] = s.ScanFile(gctx, files[i].Name, files[i].Content, child)
			results[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("scan canceled: %w", err)
	}

	var stats Stats
	for i, f := range files {
		if errs[i] != nil {
			s.logger.Warn("file skipped",
				slog.String("file", f.Name),
				slog.String("error", errs[i].Error()),
			)
			stats.Skipped = append(stats.Skipped, SkippedFile{Name: f.Name, Reason: errs[i].Error()})
		} else {
			stats.Scanned++
		}
		bundle.Merge(results[i])
	}

	span.SetAttributes(
		attribute.Int("files", len(files)),
		attribute.Int("scanned", stats.Scanned),
		attribute.Int("skipped", len(stats.Skipped)),
		attribute.Int("findings", bundle.Len()),
	)
	s.logger.Info("scan complete",
		slog.Int("files", len(files)),
		slog.Int("scanned", stats.Scanned),
		slog.Int("skipped", len(stats.Skipped)),
		slog.Int("findings", bundle.Len()),
	)
	return stats, nil
}

func ruleLabel(h rules.Hit) string {
	if id := h.Rule.Metadata.ID; len(id) > 0 {
		return id.String()
	}
	return rules.GroupName(h.Index)
}

// countingSink records findings in metrics before forwarding them.
type countingSink struct {
	next findings.Sink
}

func (c countingSink) Add(f findings.Finding) {
	sev := f.Severity
	if sev == "" {
		sev = findings.SeverityWarning
	}
	findingsTotal.WithLabelValues(string(sev)).Inc()
	if c.next != nil {
		c.next.Add(f)
	}
}

type resourceMap map[string]any

func (m resourceMap) Resource(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// layeredResources consults each provider in order.
type layeredResources []entity.ResourceProvider

func (l layeredResources) Resource(key string) (any, bool) {
	for _, p := range l {
		if v, ok := p.Resource(key); ok {
			return v, true
		}
	}
	return nil, false
}
