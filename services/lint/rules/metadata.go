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
	"fmt"
	"strings"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

// ContentKind restricts which subjects a rule applies to.
type ContentKind uint8

const (
	// KindScript is script content (JavaScript bodies).
	KindScript ContentKind = 1 << iota

	// KindMarkup is markup content (XUL, HTML, CSS, templates).
	KindMarkup

	// KindAny applies to every kind.
	KindAny = KindScript | KindMarkup
)

// Allows reports whether a rule restricted to k applies to a subject of
// kind subject. An unrestricted rule (zero or KindAny) applies to every
// subject. A subject of unknown (zero) kind matches only unrestricted rules.
func (k ContentKind) Allows(subject ContentKind) bool {
	if k == 0 || k == KindAny {
		return true
	}
	return k&subject != 0
}

// String returns "script", "markup" or "any".
func (k ContentKind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindMarkup:
		return "markup"
	}
	return "any"
}

// ParseContentKind converts "script", "markup", "any" or "" to a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return KindAny, nil
	case "script", "js":
		return KindScript, nil
	case "markup":
		return KindMarkup, nil
	}
	return 0, fmt.Errorf("unknown content kind %q", s)
}

// Metadata is the descriptive record attached to a rule.
//
// The engine only reads AppliesTo. Every other field flows into findings
// through the handler; Tags carries handler-specific extras.
type Metadata struct {
	ID                findings.ID                `json:"id"`
	Message           string                     `json:"message"`
	Description       []string                   `json:"description,omitempty"`
	Severity          findings.Severity          `json:"severity,omitempty"`
	Bug               int                        `json:"bug,omitempty"`
	Tier              int                        `json:"tier,omitempty"`
	Gate              compat.VersionDefinition   `json:"for_appversions,omitempty"`
	CompatibilityType findings.CompatibilityType `json:"compatibility_type,omitempty"`
	SigningSeverity   findings.SigningSeverity   `json:"signing_severity,omitempty"`
	SigningHelp       string                     `json:"signing_help,omitempty"`
	AppliesTo         ContentKind                `json:"-"`
	Tags              map[string]string          `json:"tags,omitempty"`
}
