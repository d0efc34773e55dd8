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
	"testing"
)

func TestParseSupported(t *testing.T) {
	apps, err := ParseSupported([]string{"firefox=45.0-53.*", "Android = 45.0 - *", "{custom-guid}=1.0-2.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := apps[FirefoxGUID]; got.Min != "45.0" || got.Max != "53.*" {
		t.Errorf("firefox = %+v", got)
	}
	if got := apps[AndroidGUID]; got.Max != "99999.*" {
		t.Errorf("android = %+v", got)
	}
	if _, ok := apps["{custom-guid}"]; !ok {
		t.Error("expected custom guid to pass through")
	}

	if !FX53Definition.Intersects(apps) {
		t.Error("45.0-53.* must intersect the 53 baseline")
	}

	none, err := ParseSupported(nil)
	if err != nil || none != nil {
		t.Errorf("ParseSupported(nil) = %v, %v", none, err)
	}
}

func TestParseSupported_Invalid(t *testing.T) {
	for _, e := range []string{"firefox", "firefox=45.0", "firefox=-1.0", "firefox=50.0-45.0", "netscape=1.0-2.0"} {
		if _, err := ParseSupported([]string{e}); !errors.Is(err, ErrInvalidSupported) {
			t.Errorf("%q: expected ErrInvalidSupported, got %v", e, err)
		}
	}
}

func TestSupportedApps_Normalize(t *testing.T) {
	s, err := SupportedApps{"firefox": {Min: "45.0", Max: "48.*"}, ThunderbirdGUID: {Min: "38.0", Max: "45.*"}}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s[FirefoxGUID]; !ok {
		t.Error("firefox name not resolved to its GUID")
	}
	if _, ok := s[ThunderbirdGUID]; !ok {
		t.Error("thunderbird GUID lost")
	}

	if _, err := (SupportedApps{"firefox": {Min: "45.0"}}).Normalize(); !errors.Is(err, ErrInvalidSupported) {
		t.Errorf("expected ErrInvalidSupported, got %v", err)
	}
}
