// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package entity

import (
	"fmt"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

// deprecationTier is the validation tier of deprecation findings.
const deprecationTier = 5

// Deprecation describes an entity that was deprecated or removed.
type Deprecation struct {
	// Name is the entity name used in the error ID and message.
	Name string

	Gate    compat.VersionDefinition
	Message string
	BugURL  string

	// Status defaults to "deprecated".
	Status string

	// CompatType defaults to findings.CompatError.
	CompatType findings.CompatibilityType
}

// DeprecationFinding builds the finding reported for d.
func DeprecationFinding(d Deprecation) findings.Finding {
	status := d.Status
	if status == "" {
		status = "deprecated"
	}
	ct := d.CompatType
	if ct == findings.CompatNone {
		ct = findings.CompatError
	}
	message := d.Message
	if message == "" {
		message = fmt.Sprintf("`%s` has been %s.", d.Name, status)
	}
	desc := []string{message}
	if d.BugURL != "" {
		desc = append(desc, fmt.Sprintf("See %s for more information.", d.BugURL))
	}
	return findings.Finding{
		ID:                findings.ID{"js", "entities", d.Name},
		Severity:          findings.SeverityWarning,
		Message:           fmt.Sprintf("`%s` has been %s.", d.Name, status),
		Description:       desc,
		Gate:              d.Gate,
		CompatibilityType: ct,
		Tier:              deprecationTier,
	}
}

// Deprecated returns a handler that reports d whenever the entity is referenced.
func Deprecated(d Deprecation) Handler {
	return func(ctx Context) Capabilities {
		Emit(ctx, DeprecationFinding(d))
		return Capabilities{}
	}
}

// ChangedEntity is one entry of a per-release list of changed entities.
type ChangedEntity struct {
	// Name is the registered path, e.g. "nsIFoo.bar".
	Name       string `yaml:"name" json:"name" validate:"required"`
	Status     string `yaml:"status" json:"status" validate:"required"`
	Bug        int    `yaml:"bug" json:"bug,omitempty"`
	CompatType string `yaml:"compatibility_type" json:"compatibility_type,omitempty" validate:"omitempty,oneof=error warning"`
}

// RegisterChanged registers a deprecation handler for every entity in
// changes.
//
// Inputs:
//
//	b - Builder to register into.
//	def - Gate attached to every finding.
//	changes - The changed entities.
//	versionString - Human readable release, e.g. "Firefox 47".
//	bugLink - Formats a bug number as a URL. May be nil.
//
// Outputs:
//
//	error - Non-nil on an invalid compatibility type or registration.
func RegisterChanged(b *Builder, def compat.VersionDefinition, changes []ChangedEntity, versionString string, bugLink func(int) string) error {
	for _, c := range changes {
		ct, err := findings.ParseCompatibilityType(c.CompatType)
		if err != nil {
			return fmt.Errorf("changed entity %q: %w", c.Name, err)
		}
		d := Deprecation{
			Name:       c.Name,
			Gate:       def,
			Status:     c.Status,
			CompatType: ct,
			Message:    fmt.Sprintf("The method or property `%s` has been `%s` in `%s`.", c.Name, c.Status, versionString),
		}
		if c.Bug != 0 && bugLink != nil {
			d.BugURL = bugLink(c.Bug)
		}
		if err := b.Register(c.Name, Deprecated(d)); err != nil {
			return err
		}
	}
	return nil
}
