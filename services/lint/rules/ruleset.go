// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules combines independently authored detection rules into one
// compiled matcher and dispatches each match to the rule that produced it.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidKey indicates a malformed rule key.
	ErrInvalidKey = errors.New("invalid rule key")

	// ErrInvalidRuleSet indicates the combined pattern could not be built.
	ErrInvalidRuleSet = errors.New("invalid rule set")
)

// groupPrefix names the capture group wrapping each rule's fragment.
const groupPrefix = "test_"

// MatchHandler reacts to one hit. It must not retain sc beyond the call.
type MatchHandler func(hit Hit, sc ScanContext)

// Rule is one detection rule.
type Rule struct {
	Key      Key
	Metadata Metadata

	// Handler is optional; the set's default handler is used when nil.
	Handler MatchHandler
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	defaultHandler MatchHandler
}

// WithDefaultHandler replaces EmitFinding as the handler for rules without one.
func WithDefaultHandler(h MatchHandler) Option {
	return func(o *buildOptions) {
		if h != nil {
			o.defaultHandler = h
		}
	}
}

// RuleSet is an ordered, compiled collection of rules.
//
// Description:
//
//	Rule i is wrapped as (?P<test_i>fragment) and all wrapped fragments are
//	joined with "|" in declaration order into a single pattern, so one
//	left-to-right pass finds every rule's matches.
//
// Thread Safety: Immutable after Build; safe for concurrent use.
type RuleSet struct {
	rules          []Rule
	source         string
	re             *regexp.Regexp
	groupIndex     []int
	defaultHandler MatchHandler
}

// Build compiles rules into a RuleSet.
//
// Description:
//
//	Each key is compiled with CompileKey and checked on its own before the
//	fragments are combined. Matching follows Go's leftmost-first
//	alternation: when several rules can match at the same start offset, the
//	rule declared first wins and later rules do not fire at that offset.
//	Rules meant to take precedence must be declared earlier. Matches never
//	overlap; scanning resumes after the end of each match.
//
//	An empty rule list yields a set that never matches.
//
// Inputs:
//
//	rules - Rules in precedence order. Copied.
//	opts - Build options.
//
// Outputs:
//
//	*RuleSet - The compiled set. Nil on error.
//	error - Wraps ErrInvalidKey for a malformed key or a fragment that does
//	not compile, or ErrInvalidRuleSet if the combined pattern fails.
//
// Thread Safety: This function is safe for concurrent use.
func Build(rules []Rule, opts ...Option) (*RuleSet, error) {
	o := buildOptions{defaultHandler: EmitFinding}
	for _, opt := range opts {
		opt(&o)
	}

	rs := &RuleSet{
		rules:          append([]Rule(nil), rules...),
		defaultHandler: o.defaultHandler,
	}
	if len(rules) == 0 {
		return rs, nil
	}

	parts := make([]string, len(rules))
	for i, r := range rules {
		frag, err := CompileKey(r.Key)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		single, err := regexp.Compile(frag)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w: %v", i, r.Key, ErrInvalidKey, err)
		}
		for _, name := range single.SubexpNames() {
			if strings.HasPrefix(name, groupPrefix) {
				return nil, fmt.Errorf("rule %d (%s): %w: group name %q is reserved", i, r.Key, ErrInvalidKey, name)
			}
		}
		parts[i] = fmt.Sprintf("(?P<%s>%s)", GroupName(i), frag)
	}

	rs.source = strings.Join(parts, "|")
	re, err := regexp.Compile(rs.source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
	}
	rs.re = re

	rs.groupIndex = make([]int, len(rules))
	for i := range rules {
		idx := re.SubexpIndex(GroupName(i))
		if idx < 0 {
			return nil, fmt.Errorf("%w: missing group %s", ErrInvalidRuleSet, GroupName(i))
		}
		rs.groupIndex[i] = idx
	}
	return rs, nil
}

// MustBuild is like Build but panics on error. For static rule tables.
func MustBuild(rules []Rule, opts ...Option) *RuleSet {
	rs, err := Build(rules, opts...)
	if err != nil {
		panic(fmt.Sprintf("rules.MustBuild: %v", err))
	}
	return rs
}

// GroupName returns the capture group name of rule i.
func GroupName(i int) string {
	return fmt.Sprintf("%s%d", groupPrefix, i)
}

// Source returns the combined pattern; empty for an empty set.
func (rs *RuleSet) Source() string { return rs.source }

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rule returns rule i.
func (rs *RuleSet) Rule(i int) Rule { return rs.rules[i] }

// Rules returns a copy of the rules in declaration order.
func (rs *RuleSet) Rules() []Rule { return append([]Rule(nil), rs.rules...) }
