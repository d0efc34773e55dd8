// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package entity binds fully-qualified API symbol paths to handlers that a
// syntax-tree walker invokes when it resolves a reference to the symbol.
package entity

import (
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

// Node is an opaque syntax-tree node owned by the walker.
type Node interface{}

// Value is the walker's inference of an expression's value.
type Value interface {
	// LiteralValue returns the constant value, or false when it is unknown.
	LiteralValue() (any, bool)
}

type literalValue struct{ v any }

func (l literalValue) LiteralValue() (any, bool) { return l.v, true }

type unknownValue struct{}

func (unknownValue) LiteralValue() (any, bool) { return nil, false }

// Literal wraps a known constant. Use nil for JavaScript null.
func Literal(v any) Value { return literalValue{v: v} }

// Unknown is a value the walker could not infer.
func Unknown() Value { return unknownValue{} }

// ResourceProvider exposes package-level resources such as "em:bootstrap".
type ResourceProvider interface {
	Resource(key string) (any, bool)
}

// Context is handed to handlers at resolution time.
//
// Description:
//
//	The walker builds one Context per resolved reference. It locates the
//	reference, exposes the finding sink, infers argument values and gives
//	access to package resources. Handlers must not retain it.
type Context interface {
	File() string
	Line() int
	Column() int
	Snippet() string
	Sink() findings.Sink
	ResolveValue(n Node) Value
	Resource(key string) (any, bool)
}

// Capabilities are the optional roles a handler can return.
type Capabilities struct {
	// Value overrides the inferred value of the resolved expression.
	Value func(ctx Context) Value

	// Return is called with the unevaluated argument nodes when the
	// resolved expression is called.
	Return func(ctx Context, args []Node)

	// Dangerous is evaluated lazily. When it reports true a generic hazard
	// finding is emitted with the returned message, if any.
	Dangerous func(ctx Context) (string, bool)
}

// Handler runs when its path is resolved. Any side effects, such as
// emitting a finding for merely referencing the symbol, happen here.
type Handler func(ctx Context) Capabilities

// Locate returns the finding location for the current resolution.
func Locate(ctx Context) findings.Location {
	return findings.Location{
		File:    ctx.File(),
		Line:    ctx.Line(),
		Column:  ctx.Column(),
		Context: ctx.Snippet(),
	}
}

// Emit locates f at the current resolution and sends it to the sink.
func Emit(ctx Context, f findings.Finding) {
	sink := ctx.Sink()
	if sink == nil {
		return
	}
	f.Location = Locate(ctx)
	sink.Add(f)
}

// DangerousID is the error ID of generic hazard findings.
var DangerousID = findings.ID{"js", "entities", "dangerous"}

// ReportDangerous emits the generic hazard finding for path.
func ReportDangerous(ctx Context, path, message string) {
	desc := []string{"The `" + path + "` API is considered dangerous and should be used with care."}
	if message != "" {
		desc = append(desc, message)
	}
	Emit(ctx, findings.Finding{
		ID:          append(findings.ID(nil), DangerousID...),
		Severity:    findings.SeverityWarning,
		Message:     "Access to dangerous global or API: " + path,
		Description: desc,
	})
}

// Static returns a handler with fixed capabilities and no side effects.
func Static(caps Capabilities) Handler {
	return func(Context) Capabilities { return caps }
}

// Truthy applies JavaScript truthiness to a literal value.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && x == x
	case int:
		return x != 0
	}
	return true
}
