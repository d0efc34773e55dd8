// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// KeyKind is the form of a rule key.
type KeyKind int

const (
	// KeyInvalid is the zero kind; a Key of this kind is malformed.
	KeyInvalid KeyKind = iota

	// KeyLiteral matches an exact substring.
	KeyLiteral

	// KeyAlternatives matches when the whole subject equals one alternative.
	KeyAlternatives

	// KeyPattern is a verbatim regular expression matched as a substring.
	KeyPattern
)

// String returns the kind name.
func (k KeyKind) String() string {
	switch k {
	case KeyLiteral:
		return "literal"
	case KeyAlternatives:
		return "alternatives"
	case KeyPattern:
		return "pattern"
	}
	return "invalid"
}

// Key selects the text a rule matches.
//
// Description:
//
//	A Key is exactly one of a literal, a set of whole-string alternatives or
//	a free-form pattern. The form decides substring versus whole-string
//	semantics and is kept through compilation. The zero Key is malformed.
//
// Thread Safety: Immutable; safe for concurrent use.
type Key struct {
	kind  KeyKind
	texts []string
}

// Literal returns a key matching text exactly, with every metacharacter escaped.
func Literal(text string) Key {
	return Key{kind: KeyLiteral, texts: []string{text}}
}

// Alternatives returns a key matching a subject that equals one of texts.
func Alternatives(texts ...string) Key {
	return Key{kind: KeyAlternatives, texts: append([]string(nil), texts...)}
}

// Pattern returns a key using source verbatim as a regular expression.
func Pattern(source string) Key {
	return Key{kind: KeyPattern, texts: []string{source}}
}

// Kind returns the key form.
func (k Key) Kind() KeyKind { return k.kind }

// Texts returns a copy of the raw key text(s).
func (k Key) Texts() []string { return append([]string(nil), k.texts...) }

// String renders the key for logs and listings.
func (k Key) String() string {
	switch k.kind {
	case KeyLiteral, KeyPattern:
		return fmt.Sprintf("%s(%q)", k.kind, k.texts[0])
	case KeyAlternatives:
		return fmt.Sprintf("%s%q", k.kind, k.texts)
	}
	return "invalid"
}

// CompileKey converts a key into a regular-expression fragment.
//
// Description:
//
//	Literal keys are escaped with regexp.QuoteMeta. Alternatives are each
//	escaped, joined with "|" and anchored as ^(?:...)$. Patterns are returned
//	unchanged. The fragment is not compiled here.
//
// Outputs:
//
//	string - The fragment.
//	error - Wraps ErrInvalidKey for the zero key, an empty literal or
//	pattern, or an empty alternatives set.
//
// Example:
//
//	CompileKey(Alternatives("foo", "bar")) // "^(?:foo|bar)$"
func CompileKey(k Key) (string, error) {
	switch k.kind {
	case KeyLiteral:
		if k.texts[0] == "" {
			return "", fmt.Errorf("%w: empty literal", ErrInvalidKey)
		}
		return regexp.QuoteMeta(k.texts[0]), nil
	case KeyAlternatives:
		if len(k.texts) == 0 {
			return "", fmt.Errorf("%w: empty alternatives set", ErrInvalidKey)
		}
		escaped := make([]string, len(k.texts))
		for i, t := range k.texts {
			escaped[i] = regexp.QuoteMeta(t)
		}
		return "^(?:" + strings.Join(escaped, "|") + ")$", nil
	case KeyPattern:
		if k.texts[0] == "" {
			return "", fmt.Errorf("%w: empty pattern", ErrInvalidKey)
		}
		return k.texts[0], nil
	}
	return "", fmt.Errorf("%w: zero key", ErrInvalidKey)
}

// MungeFilename converts a simple filename glob into a pattern fragment.
// Metacharacters are escaped and a trailing "/*" matches the path itself or
// anything beneath it.
//
//	MungeFilename("foo.bar")   // `foo\.bar`
//	MungeFilename("foo.bar/*") // `foo\.bar(?:[/\\].*)?`
func MungeFilename(glob string) string {
	if base, ok := strings.CutSuffix(glob, "/*"); ok {
		return regexp.QuoteMeta(base) + `(?:[/\\].*)?`
	}
	return regexp.QuoteMeta(glob)
}
