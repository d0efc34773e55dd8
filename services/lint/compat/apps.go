// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compat models target applications and the alpha-tagged version
// intervals that compatibility findings are gated on.
package compat

import (
	"fmt"
	"strings"
)

// Application GUIDs as declared in add-on install manifests.
const (
	FirefoxGUID     = "{ec8030f7-c20a-464f-9b0e-13a3a9e97384}"
	FennecGUID      = "{a23983c0-fd0e-11dc-95ff-0800200c9a66}"
	ThunderbirdGUID = "{3550f703-e582-4d05-9a08-453d09bdfdc6}"
	AndroidGUID     = "{aa3c5121-dab2-40e2-81ca-7ea25febc110}"
)

// App is a tracked target application.
type App struct {
	// Name is the short lowercase name ("firefox", "thunderbird", ...).
	Name string

	// GUID is the application identifier used as the key of a VersionDefinition.
	GUID string
}

// Tracked applications.
var (
	Firefox     = App{Name: "firefox", GUID: FirefoxGUID}
	Fennec      = App{Name: "fennec", GUID: FennecGUID}
	Thunderbird = App{Name: "thunderbird", GUID: ThunderbirdGUID}
	Android     = App{Name: "android", GUID: AndroidGUID}
)

// AppSet selects a subset of the tracked applications.
//
// The zero value selects nothing; use AllApps to select every tracked app.
type AppSet uint8

const (
	AppFirefox AppSet = 1 << iota
	AppFennec
	AppThunderbird
	AppAndroid

	// AllApps selects every tracked application.
	AllApps = AppFirefox | AppFennec | AppThunderbird | AppAndroid
)

// trackedApps is ordered the same way as the AppSet bits.
var trackedApps = []struct {
	bit AppSet
	app App
}{
	{AppFirefox, Firefox},
	{AppFennec, Fennec},
	{AppThunderbird, Thunderbird},
	{AppAndroid, Android},
}

// Apps returns the applications selected by the set, in tracking order.
func (s AppSet) Apps() []App {
	apps := make([]App, 0, len(trackedApps))
	for _, t := range trackedApps {
		if s&t.bit != 0 {
			apps = append(apps, t.app)
		}
	}
	return apps
}

// Has reports whether the set selects the given application.
func (s AppSet) Has(app App) bool {
	for _, t := range trackedApps {
		if t.app == app {
			return s&t.bit != 0
		}
	}
	return false
}

// String returns the selected application names joined with "|".
func (s AppSet) String() string {
	apps := s.Apps()
	if len(apps) == 0 {
		return "none"
	}
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	return strings.Join(names, "|")
}

// ParseAppSet converts application names into an AppSet.
//
// An empty list selects AllApps. Names are case-insensitive.
//
// Outputs:
//
//	AppSet - The selected applications.
//	error - Non-nil if a name is not a tracked application.
func ParseAppSet(names []string) (AppSet, error) {
	if len(names) == 0 {
		return AllApps, nil
	}
	var set AppSet
	for _, name := range names {
		app, ok := AppByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown application %q", name)
		}
		for _, t := range trackedApps {
			if t.app == app {
				set |= t.bit
			}
		}
	}
	return set, nil
}

// AppByName looks up a tracked application by its short name.
func AppByName(name string) (App, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range trackedApps {
		if t.app.Name == name {
			return t.app, true
		}
	}
	return App{}, false
}

// AppByGUID looks up a tracked application by its GUID.
func AppByGUID(guid string) (App, bool) {
	for _, t := range trackedApps {
		if t.app.GUID == guid {
			return t.app, true
		}
	}
	return App{}, false
}
