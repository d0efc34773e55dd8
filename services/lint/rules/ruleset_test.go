// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/addonlint/services/lint/findings"
)

func tagged(key Key, tag string) Rule {
	return Rule{Key: key, Metadata: Metadata{Tags: map[string]string{"name": tag}}}
}

func hitTags(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Rule.Metadata.Tags["name"]
	}
	return out
}

func TestBuild_GlommedSource(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
		want  string
	}{
		{"single", []Rule{{Key: Pattern("foo")}}, `(?P<test_0>foo)`},
		{"escaped pattern", []Rule{{Key: Pattern(`foo\|\**`)}}, `(?P<test_0>foo\|\**)`},
		{"two rules", []Rule{{Key: Pattern("foo")}, {Key: Pattern("bar")}}, `(?P<test_0>foo)|(?P<test_1>bar)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Build(tt.rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rs.Source())
			assert.Equal(t, len(tt.rules), rs.Len())
		})
	}
}

func TestScan_DispatchesToOwningRule(t *testing.T) {
	rs := MustBuild([]Rule{
		tagged(Pattern("f.o"), "foo"),
		tagged(Pattern("b.r"), "bar"),
	})

	hits := rs.Scan("foo bar baz fxo", KindScript)

	assert.Equal(t, []string{"foo", "bar", "foo"}, hitTags(hits))
	assert.Equal(t, []string{"foo", "bar", "fxo"}, []string{hits[0].Text, hits[1].Text, hits[2].Text})
	assert.Equal(t, []int{0, 1, 0}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
	assert.Equal(t, 12, hits[2].Start)
	assert.Equal(t, 15, hits[2].End)
}

func TestScan_PrecedenceIsDeclarationOrder(t *testing.T) {
	longFirst := MustBuild([]Rule{
		tagged(Literal("abc"), "abc"),
		tagged(Literal("ab"), "ab"),
		tagged(Literal("a"), "a"),
	})
	hits := longFirst.Scan("abc ab a", KindScript)
	assert.Equal(t, []string{"abc", "ab", "a"}, hitTags(hits))

	shortFirst := MustBuild([]Rule{
		tagged(Literal("a"), "a"),
		tagged(Literal("ab"), "ab"),
		tagged(Literal("abc"), "abc"),
	})
	hits = shortFirst.Scan("abc ab a", KindScript)
	assert.Equal(t, []string{"a", "a", "a"}, hitTags(hits))
	for _, h := range hits {
		assert.Equal(t, 1, h.End-h.Start)
	}
}

func TestScan_PrecedenceAcrossKeyForms(t *testing.T) {
	rs := MustBuild([]Rule{
		tagged(Pattern(`network\.\w+`), "pattern"),
		tagged(Literal("network.http."), "literal"),
		tagged(Literal("network"), "short"),
		tagged(Literal("http"), "http"),
	})
	hits := rs.Scan("network.http.", KindScript)
	require.Len(t, hits, 1)
	assert.Equal(t, "pattern", hitTags(hits)[0])
	assert.Equal(t, "network.http", hits[0].Text)
}

func TestScan_EarlierOffsetBeatsDeclarationOrder(t *testing.T) {
	rs := MustBuild([]Rule{
		tagged(Literal("bar"), "bar"),
		tagged(Literal("foobar"), "foobar"),
		tagged(Literal("oob"), "oob"),
	})
	hits := rs.Scan("foobar", KindScript)
	assert.Equal(t, []string{"foobar"}, hitTags(hits))
}

func TestScan_SkipsInapplicableKind(t *testing.T) {
	markupOnly := tagged(Literal("splitmenu"), "markup")
	markupOnly.Metadata.AppliesTo = KindMarkup
	rs := MustBuild([]Rule{markupOnly, tagged(Literal("menu"), "any")})

	assert.Empty(t, rs.Scan("splitmenu", KindScript))
	assert.Equal(t, []string{"markup"}, hitTags(rs.Scan("splitmenu", KindMarkup)))
	assert.Equal(t, []string{"any"}, hitTags(rs.Scan("menu", KindScript)))

	// A subject of unknown kind only sees unrestricted rules.
	assert.Empty(t, rs.Scan("splitmenu", 0))
	assert.Equal(t, []string{"any"}, hitTags(rs.Scan("menu", 0)))
}

func TestScan_AlternativesMatchWholeSubject(t *testing.T) {
	rs := MustBuild([]Rule{
		tagged(Alternatives("foo", "bar"), "alt"),
		tagged(Literal("baz"), "baz"),
	})

	tests := []struct {
		subject string
		want    []string
	}{
		{"foo", []string{"alt"}},
		{"bar", []string{"alt"}},
		{"foo bar", []string{}},
		{"xfoo", []string{}},
		{"foobar", []string{}},
		{"baz foo", []string{"baz"}},
		{"baz", []string{"baz"}},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, hitTags(rs.Scan(tt.subject, KindScript)))
		})
	}
}

func TestScan_LineColumnAndContext(t *testing.T) {
	rs := MustBuild([]Rule{{Key: Literal("needle")}})
	subject := "first line\n  second needle here\n\nfourth needle"

	hits := rs.Scan(subject, KindScript)
	require.Len(t, hits, 2)

	assert.Equal(t, 2, hits[0].Line)
	assert.Equal(t, 9, hits[0].Column)
	assert.Equal(t, "second needle here", hits[0].Context)

	assert.Equal(t, 4, hits[1].Line)
	assert.Equal(t, 7, hits[1].Column)
	assert.Equal(t, "fourth needle", hits[1].Context)
}

func TestScan_SubCaptures(t *testing.T) {
	rs := MustBuild([]Rule{
		{Key: Pattern(`(\w+)=(\d+)`)},
		{Key: Pattern(`x(y)?z`)},
	})
	hits := rs.Scan("a=1 xz", KindScript)
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"a", "1"}, hits[0].Groups)
	assert.Equal(t, []string{""}, hits[1].Groups)
}

func TestScan_NoDeduplication(t *testing.T) {
	rs := MustBuild([]Rule{{Key: Literal("x")}})
	assert.Len(t, rs.Scan("x x x", KindScript), 3)
}

func TestBuild_Failures(t *testing.T) {
	_, err := Build([]Rule{{Key: Literal("ok")}, {}})
	assert.True(t, errors.Is(err, ErrInvalidKey), "zero key: %v", err)

	_, err = Build([]Rule{{Key: Pattern("(unclosed")}})
	assert.True(t, errors.Is(err, ErrInvalidKey), "bad pattern: %v", err)

	_, err = Build([]Rule{{Key: Pattern(`(?P<test_9>x)`)}})
	assert.True(t, errors.Is(err, ErrInvalidKey), "reserved group: %v", err)

	assert.Panics(t, func() { MustBuild([]Rule{{Key: Alternatives()}}) })
}

func TestBuild_EmptyNeverMatches(t *testing.T) {
	rs, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "", rs.Source())
	assert.Empty(t, rs.Scan("anything at all", KindScript))
	assert.Empty(t, rs.Dispatch("anything", ScanContext{}))
}

func TestDispatch_DefaultHandlerEmitsFinding(t *testing.T) {
	rs := MustBuild([]Rule{{
		Key: Literal("network.http."),
		Metadata: Metadata{
			ID:              findings.ID{"regex", "banned_pref"},
			Message:         "Potentially unsafe preference branch referenced",
			SigningSeverity: findings.SigningHigh,
		},
	}})

	b := findings.NewBundle()
	hits := rs.Dispatch("x\nvar x = 'network.http.';", ScanContext{Kind: KindScript, File: "a.js", BaseLine: 10, Sink: b})
	require.Len(t, hits, 1)

	all := b.Findings()
	require.Len(t, all, 1)
	f := all[0]
	assert.Equal(t, "regex/banned_pref", f.ID.String())
	assert.Equal(t, findings.SeverityWarning, f.Severity)
	assert.Equal(t, "a.js", f.Location.File)
	assert.Equal(t, 12, f.Location.Line)
	assert.Equal(t, 9, f.Location.Column)
	assert.Equal(t, 1, b.SigningSummary()[findings.SigningHigh])
}

func TestDispatch_CustomHandlers(t *testing.T) {
	var custom, fallback []string
	rs := MustBuild([]Rule{
		{Key: Literal("foo"), Handler: func(h Hit, _ ScanContext) { custom = append(custom, h.Text) }},
		{Key: Literal("bar")},
	}, WithDefaultHandler(func(h Hit, _ ScanContext) { fallback = append(fallback, h.Text) }))

	rs.Dispatch("foo bar foo", ScanContext{Kind: KindScript})
	assert.Equal(t, []string{"foo", "foo"}, custom)
	assert.Equal(t, []string{"bar"}, fallback)
}

func TestEmitFinding_NilSink(t *testing.T) {
	rs := MustBuild([]Rule{{Key: Literal("foo")}})
	assert.NotPanics(t, func() { rs.Dispatch("foo", ScanContext{Kind: KindScript}) })
}
