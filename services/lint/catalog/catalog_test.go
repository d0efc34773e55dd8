// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/rules"
)

func loadDefault(t *testing.T) *Catalog {
	t.Helper()
	ResetDefault()
	t.Cleanup(ResetDefault)
	cat, err := Default(context.Background())
	require.NoError(t, err)
	return cat
}

func TestDefault_LoadsEmbeddedRules(t *testing.T) {
	cat := loadDefault(t)

	assert.NotEmpty(t, cat.Rules())
	assert.Greater(t, cat.Script.Len(), 0)
	assert.Greater(t, cat.Markup.Len(), 0)
	assert.Equal(t, len(cat.Rules()), cat.Script.Len()+cat.Markup.Len()-anyCount(cat))

	again, err := Default(context.Background())
	require.NoError(t, err)
	assert.Same(t, cat, again)
}

func anyCount(cat *Catalog) int {
	n := 0
	for _, r := range cat.Rules() {
		if r.Metadata.AppliesTo == rules.KindAny {
			n++
		}
	}
	return n
}

func TestDefault_PartitionsByKind(t *testing.T) {
	cat := loadDefault(t)

	for _, r := range cat.Markup.Rules() {
		assert.True(t, r.Metadata.AppliesTo.Allows(rules.KindMarkup), r.Key.String())
	}
	for _, r := range cat.Script.Rules() {
		assert.True(t, r.Metadata.AppliesTo.Allows(rules.KindScript), r.Key.String())
	}

	css := `-moz-binding: url("chrome://browser/content/urlbarBindings.xml#splitmenu");`
	assert.Empty(t, cat.Script.Scan(css, rules.KindScript))
	hits := cat.Markup.Scan(css, rules.KindMarkup)
	require.Len(t, hits, 1)
	md := hits[0].Rule.Metadata
	assert.Equal(t, "The splitmenu element has been removed.", md.Message)
	assert.Equal(t, findings.CompatWarning, md.CompatibilityType)
	assert.True(t, md.Gate.Has(compat.FirefoxGUID))
	r, _ := md.Gate.Range(compat.FirefoxGUID)
	assert.Equal(t, "53.0a1", r.Min)

	assert.Same(t, cat.Markup, cat.RuleSet(rules.KindMarkup))
	assert.Same(t, cat.Script, cat.RuleSet(rules.KindScript))
}

func TestDefault_BugLinksAndConstants(t *testing.T) {
	cat := loadDefault(t)

	var capability, custom *rules.Metadata
	for _, r := range cat.Rules() {
		md := r.Metadata
		switch md.ID.String() {
		case "regex/capability_policy":
			capability = &md
		case "regex/customization_pref":
			custom = &md
		}
	}
	require.NotNil(t, capability)
	require.NotNil(t, custom)

	last := capability.Description[len(capability.Description)-1]
	assert.Equal(t, "See https://bugzilla.mozilla.org/show_bug.cgi?id=652575 for more information.", last)
	assert.Equal(t, findings.DefaultTier, capability.Tier)
	assert.Equal(t, findings.SeverityWarning, capability.Severity)

	assert.True(t, strings.HasSuffix(custom.SigningHelp, DefaultConstants().CustomizationAPIHelp))
	assert.NotContains(t, custom.SigningHelp, "{{")
}

func TestDefault_Entities(t *testing.T) {
	cat := loadDefault(t)

	for _, p := range []string{
		"document.write",
		"nsIDNSService.resolve",
		"nsIPKCS11Module.listSlots",
		"nsIIOService.newChannelFromURIWithProxyFlags",
		"newThread",
		"processNextEvent",
		"nsIX509CertDB.addCertFromBase64",
		"nsIDOMWindowUtils.sendKeyEvent",
	} {
		_, ok := cat.Entities.Resolve(p)
		assert.True(t, ok, p)
	}
}

func TestLoad_Invalid(t *testing.T) {
	ctx := context.Background()
	consts := DefaultConstants()

	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"not yaml", "rules: [unterminated"},
		{"missing message", "rules:\n  - id: x\n    literal: foo\n"},
		{"two keys", "rules:\n  - id: x\n    literal: foo\n    pattern: bar\n    message: m\n"},
		{"no key", "rules:\n  - id: x\n    message: m\n"},
		{"bad severity", "rules:\n  - id: x\n    literal: foo\n    severity: fatal\n    message: m\n"},
		{"bad kind", "rules:\n  - id: x\n    literal: foo\n    applies_to: css\n    message: m\n"},
		{"compat without gate", "rules:\n  - id: x\n    literal: foo\n    message: m\n    compatibility_type: error\n"},
		{"bad gate app", "rules:\n  - id: x\n    literal: foo\n    message: m\n    gate:\n      baseline: 50\n      apps: [seamonkey]\n"},
		{"changed without entities", "rules: []\nchanged_entities:\n  - baseline: 50\n    version: Firefox 50\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(ctx, []byte(tt.yaml), consts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog), "got %v", err)
		})
	}

	_, err := Load(ctx, []byte("rules:\n  - id: x\n    pattern: '(open'\n    message: m\n"), consts)
	assert.True(t, errors.Is(err, rules.ErrInvalidKey), "got %v", err)
}

func TestLoad_GateApps(t *testing.T) {
	data := []byte(`
rules:
  - id: fx_only
    literal: foo
    message: gated
    compatibility_type: error
    gate:
      baseline: 49
      apps: [firefox]
`)
	cat, err := Load(context.Background(), data, DefaultConstants())
	require.NoError(t, err)
	require.Equal(t, 1, cat.Script.Len())
	assert.Equal(t, 0, cat.Markup.Len())

	gate := cat.Script.Rule(0).Metadata.Gate
	assert.Equal(t, []string{compat.FirefoxGUID}, gate.AppIDs())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: x\n    alternatives: [a, b]\n    message: m\n"), 0o600))

	cat, err := LoadFile(context.Background(), path, DefaultConstants())
	require.NoError(t, err)
	assert.Equal(t, `(?P<test_0>^(?:a|b)$)`, cat.Script.Source())

	_, err = LoadFile(context.Background(), filepath.Join(dir, "missing.yaml"), DefaultConstants())
	assert.Error(t, err)
}
