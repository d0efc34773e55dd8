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
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidRegistration indicates an empty path or a nil handler.
var ErrInvalidRegistration = errors.New("invalid entity registration")

// Builder collects registrations before the registry is frozen.
//
// Thread Safety: NOT safe for concurrent use.
type Builder struct {
	handlers map[string]Handler
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{handlers: make(map[string]Handler)}
}

// Register binds path to h. Registering a path again replaces the handler.
func (b *Builder) Register(path string, h Handler) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRegistration)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidRegistration, path)
	}
	b.handlers[path] = h
	return nil
}

// Alias binds every path to the same handler.
func (b *Builder) Alias(h Handler, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: alias without paths", ErrInvalidRegistration)
	}
	for _, p := range paths {
		if err := b.Register(p, h); err != nil {
			return err
		}
	}
	return nil
}

// Build freezes the registrations. The Builder may keep being used; later
// changes do not affect registries already built.
func (b *Builder) Build() *Registry {
	m := make(map[string]Handler, len(b.handlers))
	for p, h := range b.handlers {
		m[p] = h
	}
	return &Registry{handlers: m}
}

// Registry maps symbol paths to handlers.
//
// Description:
//
//	Paths are dotted member chains such as "nsIDNSService.resolve". The
//	walker looks up the longest suffix of a resolved chain, so a path does
//	not need to be rooted at a global.
//
// Thread Safety: Immutable; safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
}

// Resolve returns the handler for path. A nil registry resolves nothing.
func (r *Registry) Resolve(path string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[path]
	return h, ok
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handlers)
}
