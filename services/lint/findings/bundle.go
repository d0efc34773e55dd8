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
	"github.com/AleutianAI/addonlint/services/lint/compat"
)

// Summary counts findings per severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Notices  int `json:"notices"`
}

// Bundle is the reference in-memory Sink.
//
// Description:
//
//	Findings are normalized (default severity and tier), de-duplicated by
//	ID, message and location, filtered against the supported application
//	matrix when one is set, then kept in arrival order and bucketed by
//	severity. Compatibility findings are additionally tracked in their own
//	bucket. A Bundle also carries per-package resources (for example
//	"em:bootstrap") that entity handlers may consult.
//
// Thread Safety: NOT safe for concurrent use. A Bundle belongs to one scan.
// Concurrent scans use one Bundle each and Merge the results.
type Bundle struct {
	all       []Finding
	errors    []Finding
	warnings  []Finding
	notices   []Finding
	compat    []Finding
	seen      map[string]struct{}
	supported compat.SupportedApps
	resources map[string]any
}

// NewBundle creates an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{
		seen:      make(map[string]struct{}),
		resources: make(map[string]any),
	}
}

// Fork returns an empty bundle with the same supported matrix and a copy of
// the resources, for scanning one file of a package concurrently.
func (b *Bundle) Fork() *Bundle {
	child := NewBundle()
	child.supported = b.supported
	for k, v := range b.resources {
		child.resources[k] = v
	}
	return child
}

// SetSupportedApps restricts gated findings to those whose gate intersects
// the supported matrix. A nil matrix disables the filter.
func (b *Bundle) SetSupportedApps(apps compat.SupportedApps) {
	b.supported = apps
}

// SupportedApps returns the matrix set by SetSupportedApps.
func (b *Bundle) SupportedApps() compat.SupportedApps {
	return b.supported
}

// SetResource stores a package-level resource.
func (b *Bundle) SetResource(key string, value any) {
	b.lazyInit()
	b.resources[key] = value
}

// Resource returns a package-level resource.
func (b *Bundle) Resource(key string) (any, bool) {
	v, ok := b.resources[key]
	return v, ok
}

func (b *Bundle) lazyInit() {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	if b.resources == nil {
		b.resources = make(map[string]any)
	}
}

// Add records a finding.
//
// Description:
//
//	Applies defaults, drops duplicates, and drops gated findings that do not
//	apply to the supported matrix. Never fails.
func (b *Bundle) Add(f Finding) {
	b.add(f, true)
}

func (b *Bundle) add(f Finding, dedup bool) {
	b.lazyInit()

	if f.Severity == "" {
		f.Severity = SeverityWarning
	}
	if f.Tier == 0 {
		f.Tier = DefaultTier
	}

	if b.supported != nil && !f.Gate.IsZero() && !f.Gate.Intersects(b.supported) {
		return
	}

	k := f.key()
	if _, dup := b.seen[k]; dup && dedup {
		return
	}
	b.seen[k] = struct{}{}

	b.all = append(b.all, f)
	switch f.Severity {
	case SeverityError:
		b.errors = append(b.errors, f)
	case SeverityNotice:
		b.notices = append(b.notices, f)
	default:
		b.warnings = append(b.warnings, f)
	}
	if f.IsCompatibility() {
		b.compat = append(b.compat, f)
	}
}

// Merge adds every finding of other, in order, and copies resources that
// are not already set.
//
// Description:
//
//	other is assumed to be de-duplicated already (it is normally a Fork
//	that scanned one file), so its findings are not checked against the
//	ones already in b. Two files submitted under the same name therefore
//	each keep their findings. Defaults and the supported-matrix filter
//	still apply.
func (b *Bundle) Merge(other *Bundle) {
	if other == nil {
		return
	}
	b.lazyInit()
	for _, f := range other.all {
		b.add(f, false)
	}
	for k, v := range other.resources {
		if _, ok := b.resources[k]; !ok {
			b.resources[k] = v
		}
	}
}

// Len returns the number of recorded findings.
func (b *Bundle) Len() int { return len(b.all) }

// Findings returns all findings in arrival order.
func (b *Bundle) Findings() []Finding { return cloneFindings(b.all) }

// Errors returns error-severity findings.
func (b *Bundle) Errors() []Finding { return cloneFindings(b.errors) }

// Warnings returns warning-severity findings.
func (b *Bundle) Warnings() []Finding { return cloneFindings(b.warnings) }

// Notices returns notice-severity findings.
func (b *Bundle) Notices() []Finding { return cloneFindings(b.notices) }

// CompatFindings returns the compatibility bucket.
func (b *Bundle) CompatFindings() []Finding { return cloneFindings(b.compat) }

// Summary counts findings per severity.
func (b *Bundle) Summary() Summary {
	return Summary{
		Errors:   len(b.errors),
		Warnings: len(b.warnings),
		Notices:  len(b.notices),
	}
}

// SigningSummary counts findings per signing severity. The low, medium and
// high keys are always present.
func (b *Bundle) SigningSummary() map[SigningSeverity]int {
	out := map[SigningSeverity]int{
		SigningLow:    0,
		SigningMedium: 0,
		SigningHigh:   0,
	}
	for _, f := range b.all {
		if f.SigningSeverity != SigningNone {
			out[f.SigningSeverity]++
		}
	}
	return out
}

// CompatSummary counts compatibility findings per type. The error and
// warning keys are always present.
func (b *Bundle) CompatSummary() map[CompatibilityType]int {
	out := map[CompatibilityType]int{
		CompatError:   0,
		CompatWarning: 0,
	}
	for _, f := range b.compat {
		out[f.CompatibilityType]++
	}
	return out
}

// HasGateFor reports whether any compatibility finding is gated on appID.
func (b *Bundle) HasGateFor(appID string) bool {
	for _, f := range b.compat {
		if f.Gate.Has(appID) {
			return true
		}
	}
	return false
}

// Failed reports whether the bundle should fail a review: any error, or any
// warning when failOnWarnings is set.
func (b *Bundle) Failed(failOnWarnings bool) bool {
	if len(b.errors) > 0 {
		return true
	}
	return failOnWarnings && len(b.warnings) > 0
}

func cloneFindings(in []Finding) []Finding {
	if len(in) == 0 {
		return nil
	}
	out := make([]Finding, len(in))
	copy(out, in)
	return out
}
