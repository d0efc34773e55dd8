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
	"strings"

	"github.com/AleutianAI/addonlint/services/lint/findings"
)

// Hit is one match of one rule.
type Hit struct {
	// Index is the rule's position in the set.
	Index int
	Rule  Rule

	// Start and End are byte offsets into the subject.
	Start int
	End   int
	Text  string

	// Groups holds the sub-captures of the rule's own fragment. Groups that
	// did not participate are "".
	Groups []string

	// Line is 1-based, Column is a 0-based byte offset into the line.
	Line    int
	Column  int
	Context string
}

// ScanContext is passed to handlers during Dispatch.
type ScanContext struct {
	Kind ContentKind
	File string

	// BaseLine is added to every hit's line, for subjects that are an
	// excerpt of a larger file.
	BaseLine int

	// Sink receives findings. A nil sink discards them.
	Sink findings.Sink
}

// Scan finds every non-overlapping match in subject.
//
// Description:
//
//	Runs one leftmost-first pass of the combined pattern. For each match the
//	populated test_i group names the rule. Hits for rules whose AppliesTo
//	excludes kind are skipped. Line and column are tracked incrementally in
//	the same pass. No de-duplication is done.
//
// Thread Safety: Safe for concurrent use.
func (rs *RuleSet) Scan(subject string, kind ContentKind) []Hit {
	if rs == nil || rs.re == nil || subject == "" {
		return nil
	}
	matches := rs.re.FindAllStringSubmatchIndex(subject, -1)
	if len(matches) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(matches))
	lc := lineCounter{subject: subject, line: 1}
	for _, m := range matches {
		i := rs.ruleFor(m)
		if i < 0 {
			continue
		}
		rule := rs.rules[i]
		if !rule.Metadata.AppliesTo.Allows(kind) {
			continue
		}
		line, col, ctx := lc.locate(m[0])
		hits = append(hits, Hit{
			Index:   i,
			Rule:    rule,
			Start:   m[0],
			End:     m[1],
			Text:    subject[m[0]:m[1]],
			Groups:  rs.subCaptures(subject, m, i),
			Line:    line,
			Column:  col,
			Context: ctx,
		})
	}
	return hits
}

// Dispatch scans subject and invokes each hit's handler in match order.
func (rs *RuleSet) Dispatch(subject string, sc ScanContext) []Hit {
	hits := rs.Scan(subject, sc.Kind)
	for k := range hits {
		hits[k].Line += sc.BaseLine
		h := hits[k].Rule.Handler
		if h == nil {
			h = rs.defaultHandler
		}
		if h != nil {
			h(hits[k], sc)
		}
	}
	return hits
}

// ruleFor returns the index of the rule whose group participated in m.
func (rs *RuleSet) ruleFor(m []int) int {
	for i, g := range rs.groupIndex {
		if m[2*g] >= 0 {
			return i
		}
	}
	return -1
}

func (rs *RuleSet) subCaptures(subject string, m []int, i int) []string {
	first := rs.groupIndex[i] + 1
	last := len(m) / 2
	if i+1 < len(rs.groupIndex) {
		last = rs.groupIndex[i+1]
	}
	if first >= last {
		return nil
	}
	groups := make([]string, 0, last-first)
	for g := first; g < last; g++ {
		if m[2*g] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, subject[m[2*g]:m[2*g+1]])
	}
	return groups
}

// lineCounter converts increasing byte offsets into line and column.
type lineCounter struct {
	subject   string
	pos       int
	line      int
	lineStart int
}

func (lc *lineCounter) locate(offset int) (line, column int, context string) {
	for lc.pos < offset {
		nl := strings.IndexByte(lc.subject[lc.pos:offset], '\n')
		if nl < 0 {
			lc.pos = offset
			break
		}
		lc.pos += nl + 1
		lc.line++
		lc.lineStart = lc.pos
	}
	end := strings.IndexByte(lc.subject[lc.lineStart:], '\n')
	if end < 0 {
		end = len(lc.subject)
	} else {
		end += lc.lineStart
	}
	return lc.line, offset - lc.lineStart, strings.TrimSpace(lc.subject[lc.lineStart:end])
}

// EmitFinding is the default handler: it reports the rule's metadata as a
// finding located at the hit.
func EmitFinding(hit Hit, sc ScanContext) {
	if sc.Sink == nil {
		return
	}
	sc.Sink.Add(FindingFor(hit, sc))
}

// FindingFor builds the finding EmitFinding would report.
func FindingFor(hit Hit, sc ScanContext) findings.Finding {
	md := hit.Rule.Metadata
	id := md.ID
	if len(id) == 0 {
		id = findings.ID{"regex", GroupName(hit.Index)}
	}
	return findings.Finding{
		ID:                append(findings.ID(nil), id...),
		Severity:          md.Severity,
		Message:           md.Message,
		Description:       append([]string(nil), md.Description...),
		Location:          findings.Location{File: sc.File, Line: hit.Line, Column: hit.Column, Context: hit.Context},
		Gate:              md.Gate,
		CompatibilityType: md.CompatibilityType,
		Tier:              md.Tier,
		SigningSeverity:   md.SigningSeverity,
		SigningHelp:       md.SigningHelp,
	}
}
