// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import "fmt"

// Constants holds the link templates and help text shared by rules and
// entity handlers. It is injected so that handlers never reach for globals.
type Constants struct {
	// BugzillaBug is a format string taking a bug number.
	BugzillaBug string `yaml:"bugzilla_bug"`

	// MDNDoc is a format string taking a documentation path.
	MDNDoc string `yaml:"mdn_doc"`

	// CustomizationAPIHelp is appended to signing help for preference changes.
	CustomizationAPIHelp string `yaml:"customization_api_help"`

	// Services maps lazy service getters ("Services.obs") to the XPCOM
	// interface they return, so the walker can type member calls on them.
	Services map[string]string `yaml:"services"`
}

// DefaultConstants returns the production constants.
func DefaultConstants() Constants {
	return Constants{
		BugzillaBug: "https://bugzilla.mozilla.org/show_bug.cgi?id=%d",
		MDNDoc:      "https://developer.mozilla.org/docs/%s",
		CustomizationAPIHelp: "We recommend using a supported API for " +
			"customization of the new tab page and home page, which will " +
			"let the user keep control of their choice.",
		Services: map[string]string{
			"Services.appinfo": "nsIXULAppInfo",
			"Services.dirsvc":  "nsIDirectoryService",
			"Services.dns":     "nsIDNSService",
			"Services.io":      "nsIIOService",
			"Services.obs":     "nsIObserverService",
			"Services.prefs":   "nsIPrefBranch",
			"Services.prompt":  "nsIPromptService",
			"Services.tm":      "nsIThreadManager",
			"Services.wm":      "nsIWindowMediator",
			"Services.ww":      "nsIWindowWatcher",
		},
	}
}

// BugLink formats a bug URL.
func (c Constants) BugLink(bug int) string {
	return fmt.Sprintf(c.BugzillaBug, bug)
}

// DocLink formats a documentation URL.
func (c Constants) DocLink(path string) string {
	return fmt.Sprintf(c.MDNDoc, path)
}
