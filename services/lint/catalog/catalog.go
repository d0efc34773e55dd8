// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog loads the built-in rule catalog: regex rules from an
// embedded YAML file, entity handlers, and the constants they share.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/entity"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/rules"
)

// =============================================================================
// Embedded Default Rules
// =============================================================================

//go:embed rules.yaml
var defaultRulesYAML []byte

// MaxCatalogSize bounds the size of a rule catalog file.
const MaxCatalogSize = 1 << 20

// ErrInvalidCatalog indicates a catalog that cannot be parsed or validated.
var ErrInvalidCatalog = errors.New("invalid rule catalog")

var catalogTracer = otel.Tracer("addonlint.lint.catalog")

// =============================================================================
// File Format
// =============================================================================

type catalogFile struct {
	Rules           []ruleEntry    `yaml:"rules" validate:"dive"`
	ChangedEntities []changedGroup `yaml:"changed_entities" validate:"dive"`
}

type ruleEntry struct {
	ID                string            `yaml:"id" validate:"required"`
	Literal           string            `yaml:"literal"`
	Alternatives      []string          `yaml:"alternatives"`
	Pattern           string            `yaml:"pattern"`
	AppliesTo         string            `yaml:"applies_to" validate:"omitempty,oneof=any script markup"`
	Severity          string            `yaml:"severity" validate:"omitempty,oneof=error warning notice"`
	Message           string            `yaml:"message" validate:"required"`
	Description       []string          `yaml:"description"`
	Bug               int               `yaml:"bug" validate:"gte=0"`
	Tier              int               `yaml:"tier" validate:"gte=0,lte=5"`
	Gate              *gateEntry        `yaml:"gate"`
	CompatibilityType string            `yaml:"compatibility_type" validate:"omitempty,oneof=error warning"`
	SigningSeverity   string            `yaml:"signing_severity" validate:"omitempty,oneof=low medium high"`
	SigningHelp       string            `yaml:"signing_help"`
	Tags              map[string]string `yaml:"tags"`
}

type gateEntry struct {
	Baseline int      `yaml:"baseline" validate:"required,gte=1"`
	Apps     []string `yaml:"apps"`
}

type changedGroup struct {
	Baseline int                    `yaml:"baseline" validate:"required,gte=1"`
	Apps     []string               `yaml:"apps"`
	Version  string                 `yaml:"version" validate:"required"`
	Entities []entity.ChangedEntity `yaml:"entities" validate:"required,min=1,dive"`
}

// =============================================================================
// Catalog
// =============================================================================

// Catalog is the compiled rule catalog.
//
// Description:
//
//	Script and Markup are built from the same rule list, each keeping only
//	the rules that apply to its kind, so a rule for one kind can never take
//	precedence over a rule for the other at a tied offset.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Catalog struct {
	Script    *rules.RuleSet
	Markup    *rules.RuleSet
	Entities  *entity.Registry
	Constants Constants

	all []rules.Rule
}

// Rules returns every regex rule in declaration order.
func (c *Catalog) Rules() []rules.Rule {
	return append([]rules.Rule(nil), c.all...)
}

// RuleSet returns the compiled set for a content kind.
func (c *Catalog) RuleSet(kind rules.ContentKind) *rules.RuleSet {
	if kind == rules.KindMarkup {
		return c.Markup
	}
	return c.Script
}

// =============================================================================
// Singleton Default Catalog
// =============================================================================

var (
	defaultMu      sync.Mutex
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded rules and
// DefaultConstants.
//
// Description:
//
//	Loads on first call and caches the result, including a load error.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func Default(ctx context.Context) (*Catalog, error) {
	if ctx == nil {
		return nil, fmt.Errorf("catalog.Default: ctx must not be nil")
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(ctx, defaultRulesYAML, DefaultConstants())
	})
	return defaultCatalog, defaultErr
}

// ResetDefault clears the cached default catalog for testing.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCatalog = nil
	defaultErr = nil
	defaultOnce = sync.Once{}
}

// LoadFile loads a catalog from a YAML file on disk.
func LoadFile(ctx context.Context, path string, consts Constants) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	if info.Size() > MaxCatalogSize {
		return nil, fmt.Errorf("LoadFile: %w: %s exceeds %d bytes", ErrInvalidCatalog, path, MaxCatalogSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	return Load(ctx, data, consts)
}

// Load parses, validates and compiles a catalog from YAML bytes.
//
// Description:
//
//	Applies defaults (warning severity, script content), checks each entry
//	with struct validation and the one-key rule, resolves gates to version
//	definitions, then builds one rule set per content kind and the entity
//	registry (built-in entities plus the changed-entity lists).
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes.
//	consts - Link templates and help text.
//
// Outputs:
//
//	*Catalog - The compiled catalog.
//	error - Wraps ErrInvalidCatalog on parse or validation failure, or the
//	rules/entity sentinel on a build failure.
func Load(ctx context.Context, data []byte, consts Constants) (*Catalog, error) {
	_, span := catalogTracer.Start(ctx, "catalog.Load")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("Load: %w: empty YAML data", ErrInvalidCatalog)
	}
	if len(data) > MaxCatalogSize {
		return nil, fmt.Errorf("Load: %w: YAML data exceeds maximum size (%d > %d)", ErrInvalidCatalog, len(data), MaxCatalogSize)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("Load: %w: parsing YAML: %v", ErrInvalidCatalog, err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("Load: %w: %v", ErrInvalidCatalog, err)
	}

	all := make([]rules.Rule, 0, len(file.Rules))
	for i, e := range file.Rules {
		r, err := e.toRule(consts)
		if err != nil {
			return nil, fmt.Errorf("Load: rule[%d] (%s): %w", i, e.ID, err)
		}
		all = append(all, r)
	}

	script, err := rules.Build(filterKind(all, rules.KindScript))
	if err != nil {
		return nil, fmt.Errorf("Load: script rules: %w", err)
	}
	markup, err := rules.Build(filterKind(all, rules.KindMarkup))
	if err != nil {
		return nil, fmt.Errorf("Load: markup rules: %w", err)
	}

	b := BuildEntities(consts)
	for i, g := range file.ChangedEntities {
		apps, err := compat.ParseAppSet(g.Apps)
		if err != nil {
			return nil, fmt.Errorf("Load: %w: changed_entities[%d]: %v", ErrInvalidCatalog, i, err)
		}
		def := compat.BuildDefinition(g.Baseline, apps)
		if err := entity.RegisterChanged(b, def, g.Entities, g.Version, consts.BugLink); err != nil {
			return nil, fmt.Errorf("Load: changed_entities[%d]: %w", i, err)
		}
	}

	cat := &Catalog{
		Script:    script,
		Markup:    markup,
		Entities:  b.Build(),
		Constants: consts,
		all:       all,
	}

	span.SetAttributes(
		attribute.Int("rules", len(all)),
		attribute.Int("script_rules", script.Len()),
		attribute.Int("markup_rules", markup.Len()),
		attribute.Int("entities", cat.Entities.Len()),
	)

	slog.Info("rule catalog loaded",
		slog.Int("rules", len(all)),
		slog.Int("script_rules", script.Len()),
		slog.Int("markup_rules", markup.Len()),
		slog.Int("entities", cat.Entities.Len()),
	)

	return cat, nil
}

func filterKind(all []rules.Rule, kind rules.ContentKind) []rules.Rule {
	out := make([]rules.Rule, 0, len(all))
	for _, r := range all {
		if r.Metadata.AppliesTo.Allows(kind) {
			out = append(out, r)
		}
	}
	return out
}

// toRule converts a validated entry into a rule.
func (e ruleEntry) toRule(consts Constants) (rules.Rule, error) {
	var (
		key   rules.Key
		count int
	)
	if e.Literal != "" {
		key = rules.Literal(e.Literal)
		count++
	}
	if len(e.Alternatives) > 0 {
		key = rules.Alternatives(e.Alternatives...)
		count++
	}
	if e.Pattern != "" {
		key = rules.Pattern(e.Pattern)
		count++
	}
	if count != 1 {
		return rules.Rule{}, fmt.Errorf("%w: exactly one of literal, alternatives or pattern is required, got %d", ErrInvalidCatalog, count)
	}

	kind := rules.KindScript
	if e.AppliesTo != "" {
		k, err := rules.ParseContentKind(e.AppliesTo)
		if err != nil {
			return rules.Rule{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		kind = k
	}

	severity, err := findings.ParseSeverity(e.Severity)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	ct, err := findings.ParseCompatibilityType(e.CompatibilityType)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	signing, err := findings.ParseSigningSeverity(e.SigningSeverity)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var gate compat.VersionDefinition
	if e.Gate != nil {
		apps, err := compat.ParseAppSet(e.Gate.Apps)
		if err != nil {
			return rules.Rule{}, fmt.Errorf("%w: gate: %v", ErrInvalidCatalog, err)
		}
		gate = compat.BuildDefinition(e.Gate.Baseline, apps)
	}
	if ct != findings.CompatNone && gate.IsZero() {
		return rules.Rule{}, fmt.Errorf("%w: compatibility_type requires a gate", ErrInvalidCatalog)
	}

	desc := append([]string(nil), e.Description...)
	if e.Bug != 0 {
		desc = append(desc, fmt.Sprintf("See %s for more information.", consts.BugLink(e.Bug)))
	}

	tier := e.Tier
	if tier == 0 {
		tier = findings.DefaultTier
	}

	return rules.Rule{
		Key: key,
		Metadata: rules.Metadata{
			ID:                findings.ID{"regex", e.ID},
			Message:           e.Message,
			Description:       desc,
			Severity:          severity,
			Bug:               e.Bug,
			Tier:              tier,
			Gate:              gate,
			CompatibilityType: ct,
			SigningSeverity:   signing,
			SigningHelp:       expandConstants(e.SigningHelp, consts),
			AppliesTo:         kind,
			Tags:              e.Tags,
		},
	}, nil
}

func expandConstants(s string, consts Constants) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return strings.ReplaceAll(s, "{{customization_api_help}}", consts.CustomizationAPIHelp)
}
