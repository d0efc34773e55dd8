// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"github.com/AleutianAI/addonlint/services/lint/compat"
)

// ScanFileInput is one file body submitted for scanning.
type ScanFileInput struct {
	// Name is the path inside the package, used to classify the content.
	Name string `json:"name" binding:"required,max=1024"`

	// Content is the file body.
	Content string `json:"content"`
}

// ScanRequest is the body of POST /v1/lint/scan.
type ScanRequest struct {
	// Files to scan. Names need not be unique.
	Files []ScanFileInput `json:"files" binding:"required,min=1,max=5000,dive"`

	// SupportedApps declares the package's application matrix, keyed by
	// application name or GUID. Gated findings outside it are dropped.
	SupportedApps compat.SupportedApps `json:"supported_apps,omitempty"`

	// Bootstrapped marks a bootstrapped (restartless) package.
	Bootstrapped bool `json:"bootstrapped,omitempty"`

	// FailOnWarnings makes warnings fail the run. Defaults to true.
	FailOnWarnings *bool `json:"fail_on_warnings,omitempty"`
}

// RuleInfo describes one catalog rule.
type RuleInfo struct {
	ID                string   `json:"id"`
	Key               string   `json:"key"`
	AppliesTo         string   `json:"applies_to"`
	Severity          string   `json:"severity"`
	Message           string   `json:"message"`
	Tier              int      `json:"tier"`
	CompatibilityType string   `json:"compatibility_type,omitempty"`
	SigningSeverity   string   `json:"signing_severity,omitempty"`
	GateApps          []string `json:"gate_apps,omitempty"`
}

// RulesResponse is the body of GET /v1/lint/rules.
type RulesResponse struct {
	Rules []RuleInfo `json:"rules"`
	Count int        `json:"count"`
}

// EntitiesResponse is the body of GET /v1/lint/entities.
type EntitiesResponse struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

// HealthResponse is the body of GET /v1/lint/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Rules     int    `json:"rules"`
	Entities  int    `json:"entities"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse is returned by every handler on failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
