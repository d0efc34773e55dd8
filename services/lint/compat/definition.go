// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compat

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// Version Ranges
// =============================================================================

// AppVersionRange is a half-open version interval [Min, Max) for one application.
//
// Thread Safety: AppVersionRange is a value type and immutable by convention.
type AppVersionRange struct {
	// AppID is the application GUID.
	AppID string `json:"app_id"`

	// AppName is the short application name, for display.
	AppName string `json:"app"`

	// Min is the inclusive lower bound, e.g. "45.0a1".
	Min string `json:"min_version"`

	// Max is the exclusive upper bound, e.g. "46.0a1".
	Max string `json:"max_version"`
}

// Contains reports whether version v falls in [Min, Max).
func (r AppVersionRange) Contains(v string) bool {
	return CompareVersions(v, r.Min) >= 0 && CompareVersions(v, r.Max) < 0
}

// Overlaps reports whether the closed interval [min, max] declared by a
// package shares at least one version with the half-open range.
func (r AppVersionRange) Overlaps(min, max string) bool {
	return CompareVersions(min, r.Max) < 0 && CompareVersions(max, r.Min) >= 0
}

// String formats the range as "firefox [45.0a1, 46.0a1)".
func (r AppVersionRange) String() string {
	return fmt.Sprintf("%s [%s, %s)", r.AppName, r.Min, r.Max)
}

// SupportedRange is the closed version interval a package declares for one
// application (minVersion/maxVersion of a targetApplication entry).
type SupportedRange struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

// SupportedApps maps application GUIDs to the range a package supports.
type SupportedApps map[string]SupportedRange

// =============================================================================
// Version Definitions
// =============================================================================

// VersionDefinition maps application GUIDs to the version range a
// compatibility rule applies to.
//
// Description:
//
//	The zero value is an empty definition and means "no gate". Definitions
//	are immutable: all accessors return copies, so a single definition may be
//	shared by any number of rules and findings.
//
// Thread Safety: Safe for concurrent use.
type VersionDefinition struct {
	ranges map[string]AppVersionRange
}

// NewVersionDefinition creates a definition from explicit ranges. A later
// range for the same AppID replaces an earlier one.
func NewVersionDefinition(ranges ...AppVersionRange) VersionDefinition {
	if len(ranges) == 0 {
		return VersionDefinition{}
	}
	m := make(map[string]AppVersionRange, len(ranges))
	for _, r := range ranges {
		m[r.AppID] = r
	}
	return VersionDefinition{ranges: m}
}

// IsZero reports whether the definition gates nothing.
func (d VersionDefinition) IsZero() bool {
	return len(d.ranges) == 0
}

// Len returns the number of applications in the definition.
func (d VersionDefinition) Len() int {
	return len(d.ranges)
}

// Range returns the range for an application GUID.
func (d VersionDefinition) Range(appID string) (AppVersionRange, bool) {
	r, ok := d.ranges[appID]
	return r, ok
}

// Has reports whether the definition contains the application GUID.
func (d VersionDefinition) Has(appID string) bool {
	_, ok := d.ranges[appID]
	return ok
}

// AppIDs returns the application GUIDs in sorted order.
func (d VersionDefinition) AppIDs() []string {
	ids := make([]string, 0, len(d.ranges))
	for id := range d.ranges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ranges returns all ranges ordered by application GUID.
func (d VersionDefinition) Ranges() []AppVersionRange {
	ids := d.AppIDs()
	out := make([]AppVersionRange, len(ids))
	for i, id := range ids {
		out[i] = d.ranges[id]
	}
	return out
}

// Intersects reports whether any application range overlaps the supported
// matrix of a package.
//
// Description:
//
//	Applications absent from either side never match. An empty definition
//	never intersects anything.
func (d VersionDefinition) Intersects(supported SupportedApps) bool {
	for id, r := range d.ranges {
		s, ok := supported[id]
		if !ok {
			continue
		}
		if r.Overlaps(s.Min, s.Max) {
			return true
		}
	}
	return false
}

// MarshalJSON renders the definition as an object keyed by application GUID.
func (d VersionDefinition) MarshalJSON() ([]byte, error) {
	if d.ranges == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.ranges)
}

// =============================================================================
// Baselines
// =============================================================================

// BuildDefinition builds the gate for major version N: every application in
// apps gets the half-open range ["N.0a1", "(N+1).0a1").
//
// Example:
//
//	def := BuildDefinition(53, AppFirefox|AppThunderbird)
//	r, _ := def.Range(FirefoxGUID) // firefox [53.0a1, 54.0a1)
//
// Thread Safety: This function is safe for concurrent use.
func BuildDefinition(major int, apps AppSet) VersionDefinition {
	min := fmt.Sprintf("%d.0a1", major)
	max := fmt.Sprintf("%d.0a1", major+1)

	selected := apps.Apps()
	ranges := make([]AppVersionRange, 0, len(selected))
	for _, app := range selected {
		ranges = append(ranges, AppVersionRange{
			AppID:   app.GUID,
			AppName: app.Name,
			Min:     min,
			Max:     max,
		})
	}
	return NewVersionDefinition(ranges...)
}

// Precomputed baselines shared by compatibility rules.
var (
	FX45Definition = BuildDefinition(45, AllApps)
	FX46Definition = BuildDefinition(46, AllApps)
	FX47Definition = BuildDefinition(47, AllApps)
	FX48Definition = BuildDefinition(48, AllApps)
	FX49Definition = BuildDefinition(49, AllApps)
	FX50Definition = BuildDefinition(50, AllApps)
	FX51Definition = BuildDefinition(51, AllApps)
	FX52Definition = BuildDefinition(52, AllApps)
	FX53Definition = BuildDefinition(53, AllApps)
)

var baselines = map[int]VersionDefinition{
	45: FX45Definition,
	46: FX46Definition,
	47: FX47Definition,
	48: FX48Definition,
	49: FX49Definition,
	50: FX50Definition,
	51: FX51Definition,
	52: FX52Definition,
	53: FX53Definition,
}

// Baseline returns the precomputed all-application definition for a major
// version, if one exists.
func Baseline(major int) (VersionDefinition, bool) {
	d, ok := baselines[major]
	return d, ok
}
