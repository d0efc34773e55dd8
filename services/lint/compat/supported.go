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
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSupported indicates a malformed supported-application entry.
var ErrInvalidSupported = errors.New("invalid supported application")

// ResolveAppID maps an application name or GUID to a GUID.
//
// Tracked names ("firefox") and GUIDs resolve directly. Any other GUID-like
// key ("{...}" or "id@domain") is passed through so packages may declare
// applications this module does not track.
func ResolveAppID(key string) (string, error) {
	key = strings.TrimSpace(key)
	if app, ok := AppByName(key); ok {
		return app.GUID, nil
	}
	if app, ok := AppByGUID(key); ok {
		return app.GUID, nil
	}
	if (strings.HasPrefix(key, "{") && strings.HasSuffix(key, "}")) || strings.Contains(key, "@") {
		return key, nil
	}
	return "", fmt.Errorf("%w: unknown application %q", ErrInvalidSupported, key)
}

// ParseSupported parses "app=min-max" entries into a matrix.
//
// Example:
//
//	apps, err := ParseSupported([]string{"firefox=45.0-53.*", "android=45.0-*"})
//
// A later entry for the same application replaces an earlier one. A bare
// "*" maximum means any version.
func ParseSupported(entries []string) (SupportedApps, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(SupportedApps, len(entries))
	for _, e := range entries {
		name, span, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q: want app=min-max", ErrInvalidSupported, e)
		}
		min, max, ok := strings.Cut(strings.TrimSpace(span), "-")
		min, max = strings.TrimSpace(min), strings.TrimSpace(max)
		if !ok || min == "" || max == "" {
			return nil, fmt.Errorf("%w: %q: want app=min-max", ErrInvalidSupported, e)
		}
		if max == "*" {
			max = "99999.*"
		}
		if CompareVersions(min, max) > 0 {
			return nil, fmt.Errorf("%w: %q: min exceeds max", ErrInvalidSupported, e)
		}
		id, err := ResolveAppID(name)
		if err != nil {
			return nil, err
		}
		out[id] = SupportedRange{Min: min, Max: max}
	}
	return out, nil
}

// Normalize resolves the keys of s to GUIDs.
func (s SupportedApps) Normalize() (SupportedApps, error) {
	if s == nil {
		return nil, nil
	}
	out := make(SupportedApps, len(s))
	for k, r := range s {
		id, err := ResolveAppID(k)
		if err != nil {
			return nil, err
		}
		if r.Min == "" || r.Max == "" {
			return nil, fmt.Errorf("%w: %q: min and max are required", ErrInvalidSupported, k)
		}
		out[id] = r
	}
	return out, nil
}
