// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/addonlint/services/lint/compat"
)

func finding(id, msg string, line int) Finding {
	return Finding{
		ID:       ID{"regex", id},
		Message:  msg,
		Location: Location{File: "main.js", Line: line},
	}
}

func TestBundle_DefaultsAndBuckets(t *testing.T) {
	b := NewBundle()
	b.Add(finding("a", "plain", 1))
	b.Add(Finding{ID: ID{"x"}, Message: "err", Severity: SeverityError})
	b.Add(Finding{ID: ID{"y"}, Message: "note", Severity: SeverityNotice, Tier: 1})

	require.Equal(t, 3, b.Len())
	assert.Equal(t, Summary{Errors: 1, Warnings: 1, Notices: 1}, b.Summary())

	w := b.Warnings()
	require.Len(t, w, 1)
	assert.Equal(t, SeverityWarning, w[0].Severity)
	assert.Equal(t, DefaultTier, w[0].Tier)
	assert.Equal(t, 1, b.Notices()[0].Tier)
}

func TestBundle_Dedupe(t *testing.T) {
	b := NewBundle()
	b.Add(finding("a", "same", 4))
	b.Add(finding("a", "same", 4))
	b.Add(finding("a", "same", 5))
	b.Add(finding("a", "different", 4))

	assert.Equal(t, 3, b.Len())
}

func TestBundle_SigningSummary(t *testing.T) {
	b := NewBundle()
	assert.Equal(t, map[SigningSeverity]int{SigningLow: 0, SigningMedium: 0, SigningHigh: 0}, b.SigningSummary())

	f := finding("x", "risky", 1)
	f.SigningSeverity = SigningHigh
	b.Add(f)
	f.Location.Line = 2
	b.Add(f)
	f.Location.Line = 3
	f.SigningSeverity = SigningLow
	b.Add(f)

	s := b.SigningSummary()
	assert.Equal(t, 2, s[SigningHigh])
	assert.Equal(t, 1, s[SigningLow])
	assert.Equal(t, 0, s[SigningMedium])
}

func TestBundle_CompatBucket(t *testing.T) {
	b := NewBundle()
	b.Add(finding("plain", "not gated", 1))

	gated := finding("gated", "removed", 2)
	gated.Gate = compat.BuildDefinition(48, compat.AppFirefox)
	gated.CompatibilityType = CompatError
	b.Add(gated)

	cf := b.CompatFindings()
	require.Len(t, cf, 1)
	assert.Equal(t, "regex/gated", cf[0].ID.String())
	assert.True(t, b.HasGateFor(compat.FirefoxGUID))
	assert.False(t, b.HasGateFor(compat.ThunderbirdGUID))
	assert.Equal(t, 1, b.CompatSummary()[CompatError])
	assert.Equal(t, 0, b.CompatSummary()[CompatWarning])
}

func TestBundle_SupportedAppsFilter(t *testing.T) {
	b := NewBundle()
	b.SetSupportedApps(compat.SupportedApps{
		compat.FirefoxGUID: {Min: "40.0", Max: "46.*"},
	})

	old := finding("fx45", "applies", 1)
	old.Gate = compat.FX45Definition
	old.CompatibilityType = CompatWarning
	b.Add(old)

	newer := finding("fx50", "does not apply", 2)
	newer.Gate = compat.FX50Definition
	newer.CompatibilityType = CompatWarning
	b.Add(newer)

	b.Add(finding("ungated", "always kept", 3))

	require.Equal(t, 2, b.Len())
	assert.Len(t, b.CompatFindings(), 1)
}

func TestBundle_Failed(t *testing.T) {
	b := NewBundle()
	assert.False(t, b.Failed(true))

	b.Add(finding("w", "warn", 1))
	assert.False(t, b.Failed(false))
	assert.True(t, b.Failed(true))

	b.Add(Finding{ID: ID{"e"}, Message: "err", Severity: SeverityError})
	assert.True(t, b.Failed(false))
}

func TestBundle_MergeKeepsOrderAndResources(t *testing.T) {
	a := NewBundle()
	a.Add(finding("one", "first", 1))
	a.SetResource("em:bootstrap", false)

	other := NewBundle()
	other.Add(finding("two", "second", 1))
	other.Add(finding("one", "first", 1))
	other.SetResource("em:bootstrap", true)
	other.SetResource("manifest", "install.rdf")

	a.Merge(other)

	// Merged findings are not de-duplicated against the receiver.
	all := a.Findings()
	require.Len(t, all, 3)
	assert.Equal(t, "regex/one", all[0].ID.String())
	assert.Equal(t, "regex/two", all[1].ID.String())
	assert.Equal(t, "regex/one", all[2].ID.String())

	// Later Adds still are.
	a.Add(finding("two", "second", 1))
	assert.Equal(t, 3, a.Len())

	v, _ := a.Resource("em:bootstrap")
	assert.Equal(t, false, v)
	v, ok := a.Resource("manifest")
	assert.True(t, ok)
	assert.Equal(t, "install.rdf", v)
}

func TestBundle_ZeroValueUsable(t *testing.T) {
	var b Bundle
	b.Add(finding("z", "zero", 1))
	b.SetResource("k", 1)
	assert.Equal(t, 1, b.Len())
}

func TestSinkFunc(t *testing.T) {
	var got []Finding
	var s Sink = SinkFunc(func(f Finding) { got = append(got, f) })
	s.Add(finding("f", "m", 1))
	assert.Len(t, got, 1)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"", SeverityWarning, false},
		{"ERROR", SeverityError, false},
		{"notice", SeverityNotice, false},
		{"fatal", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSigningSeverity("extreme")
	assert.Error(t, err)
	c, err := ParseCompatibilityType("none")
	require.NoError(t, err)
	assert.Equal(t, CompatNone, c)
}

func TestBundle_Fork(t *testing.T) {
	parent := NewBundle()
	parent.SetSupportedApps(compat.SupportedApps{compat.FirefoxGUID: {Min: "45.0", Max: "45.*"}})
	parent.SetResource("em:bootstrap", true)
	parent.Add(finding("p", "parent only", 1))

	child := parent.Fork()
	assert.Equal(t, 0, child.Len())
	v, ok := child.Resource("em:bootstrap")
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.Equal(t, parent.SupportedApps(), child.SupportedApps())

	child.SetResource("em:bootstrap", false)
	v, _ = parent.Resource("em:bootstrap")
	assert.Equal(t, true, v)
}
