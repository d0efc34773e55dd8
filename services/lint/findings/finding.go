// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package findings defines the uniform reporting contract for lint results
// and an in-memory sink that buckets, de-duplicates and summarizes them.
package findings

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/addonlint/services/lint/compat"
)

// DefaultTier is the validation tier assigned when a rule does not set one.
const DefaultTier = 3

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

// ParseSeverity converts a string to a Severity. The empty string maps to
// SeverityWarning.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeverityWarning:
		return SeverityWarning, nil
	case SeverityError:
		return SeverityError, nil
	case SeverityNotice:
		return SeverityNotice, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// CompatibilityType classifies how a version-gated finding affects the
// package. The empty value means the finding is not a compatibility finding.
type CompatibilityType string

const (
	CompatNone    CompatibilityType = ""
	CompatError   CompatibilityType = "error"
	CompatWarning CompatibilityType = "warning"
)

// ParseCompatibilityType converts a string to a CompatibilityType.
func ParseCompatibilityType(s string) (CompatibilityType, error) {
	switch CompatibilityType(strings.ToLower(strings.TrimSpace(s))) {
	case CompatNone, "none":
		return CompatNone, nil
	case CompatError:
		return CompatError, nil
	case CompatWarning:
		return CompatWarning, nil
	}
	return "", fmt.Errorf("unknown compatibility type %q", s)
}

// SigningSeverity is the add-on signing risk of a finding.
type SigningSeverity string

const (
	SigningNone   SigningSeverity = ""
	SigningLow    SigningSeverity = "low"
	SigningMedium SigningSeverity = "medium"
	SigningHigh   SigningSeverity = "high"
)

// ParseSigningSeverity converts a string to a SigningSeverity.
func ParseSigningSeverity(s string) (SigningSeverity, error) {
	switch SigningSeverity(strings.ToLower(strings.TrimSpace(s))) {
	case SigningNone, "none":
		return SigningNone, nil
	case SigningLow:
		return SigningLow, nil
	case SigningMedium:
		return SigningMedium, nil
	case SigningHigh:
		return SigningHigh, nil
	}
	return "", fmt.Errorf("unknown signing severity %q", s)
}

// ID is a hierarchical error identifier such as ["regex", "banned_pref"].
type ID []string

// String joins the path with "/".
func (id ID) String() string {
	return strings.Join(id, "/")
}

// Location places a finding in a file.
type Location struct {
	File string `json:"file,omitempty"`

	// Line is 1-based; zero means unknown.
	Line int `json:"line,omitempty"`

	// Column is 0-based.
	Column int `json:"column,omitempty"`

	// Context is the trimmed source line, when available.
	Context string `json:"context,omitempty"`
}

// Finding is a single reported violation.
//
// Description:
//
//	Findings are constructed at match time and handed to a Sink. A finding
//	with a non-empty Gate and a CompatibilityType is a compatibility finding;
//	a finding with a SigningSeverity counts toward the signing summary.
type Finding struct {
	ID                ID                       `json:"id"`
	Severity          Severity                 `json:"severity"`
	Message           string                   `json:"message"`
	Description       []string                 `json:"description,omitempty"`
	Location          Location                 `json:"location"`
	Gate              compat.VersionDefinition `json:"for_appversions,omitempty"`
	CompatibilityType CompatibilityType        `json:"compatibility_type,omitempty"`
	Tier              int                      `json:"tier"`
	SigningSeverity   SigningSeverity          `json:"signing_severity,omitempty"`
	SigningHelp       string                   `json:"signing_help,omitempty"`
}

// IsCompatibility reports whether the finding belongs in the compatibility bucket.
func (f Finding) IsCompatibility() bool {
	return f.CompatibilityType != CompatNone
}

// key identifies a finding for de-duplication.
func (f Finding) key() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d\x00%d",
		f.ID.String(), f.Message, f.Location.File, f.Location.Line, f.Location.Column)
}

// Sink receives findings. Implementations decide storage and ordering.
type Sink interface {
	Add(f Finding)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Finding)

// Add calls fn(f).
func (fn SinkFunc) Add(f Finding) {
	fn(f)
}
