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
	"math"
	"strconv"
	"strings"
)

// versionPart is one dot-separated part of a toolkit version string:
// <number-a><string-b><number-c><string-d>.
type versionPart struct {
	a int64
	b string
	c int64
	d string
}

// CompareVersions compares two toolkit version strings such as "45.0a1",
// "45.0b3", "45.0" and "45.*".
//
// Description:
//
//	Each dot-separated part is split into a number, a string, a number and a
//	trailing string. Numbers compare numerically ("*" is infinite), strings
//	compare bytewise, and a missing string sorts after any present one so
//	that "45.0a1" < "45.0". Missing parts compare as "0". A "+" suffix is
//	read as the next number's "pre" release ("1.0+" == "1.1pre").
//
// Outputs:
//
//	int - -1 if a < b, 0 if equal, +1 if a > b.
//
// Thread Safety: This function is safe for concurrent use.
func CompareVersions(a, b string) int {
	pa := splitVersion(a)
	pb := splitVersion(b)
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y versionPart
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if c := comparePart(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func splitVersion(v string) []versionPart {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ".")
	parts := make([]versionPart, len(raw))
	for i, r := range raw {
		parts[i] = parsePart(r)
	}
	return parts
}

func parsePart(s string) versionPart {
	var p versionPart
	if s == "*" {
		p.a = math.MaxInt64
		return p
	}
	var rest string
	p.a, rest = leadingNumber(s)
	if rest == "+" {
		p.a++
		p.b = "pre"
		return p
	}
	p.b, rest = leadingString(rest)
	p.c, p.d = leadingNumber(rest)
	return p
}

func leadingNumber(s string) (int64, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		n = math.MaxInt64
	}
	return n, s[i:]
}

func leadingString(s string) (string, string) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	return s[:i], s[i:]
}

func comparePart(x, y versionPart) int {
	if c := compareInt(x.a, y.a); c != 0 {
		return c
	}
	if c := compareTag(x.b, y.b); c != 0 {
		return c
	}
	if c := compareInt(x.c, y.c); c != 0 {
		return c
	}
	return compareTag(x.d, y.d)
}

func compareInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// compareTag orders release tags; an absent tag is a final release and sorts last.
func compareTag(x, y string) int {
	switch {
	case x == y:
		return 0
	case x == "":
		return 1
	case y == "":
		return -1
	case x < y:
		return -1
	}
	return 1
}
