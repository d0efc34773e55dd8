// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jswalk

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/addonlint/services/lint/entity"
)

// collectBindings records constant initializers and assignments of plain
// identifiers, in source order, before handlers run. Identifiers bound to an
// XPCOM service or instance also record the interface they were typed to.
func (st *walkState) collectBindings(root *sitter.Node) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		var name, value *sitter.Node
		switch node.Type() {
		case "variable_declarator":
			name, value = node.ChildByFieldName("name"), node.ChildByFieldName("value")
		case "assignment_expression":
			name, value = node.ChildByFieldName("left"), node.ChildByFieldName("right")
		}
		if name != nil && value != nil && name.Type() == "identifier" {
			if v := st.evaluate(value, 0); isKnown(v) {
				st.bindings[name.Content(st.src)] = v
			}
			if iface, ok := st.interfaceOf(value, 0); ok {
				st.ifaces[name.Content(st.src)] = iface
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// bindDeclared binds the declared name when node is the initializer of a
// variable declarator and a handler supplied its value.
func (st *walkState) bindDeclared(node *sitter.Node, v entity.Value) {
	parent := node.Parent()
	if parent == nil || parent.Type() != "variable_declarator" {
		return
	}
	if !sameNode(parent.ChildByFieldName("value"), node) {
		return
	}
	name := parent.ChildByFieldName("name")
	if name == nil || name.Type() != "identifier" || !isKnown(v) {
		return
	}
	st.bindings[name.Content(st.src)] = v
}

func isKnown(v entity.Value) bool {
	if v == nil {
		return false
	}
	_, ok := v.LiteralValue()
	return ok
}

// evaluate infers the literal value of an expression.
func (st *walkState) evaluate(node *sitter.Node, depth int) entity.Value {
	if node == nil || depth > maxEvalDepth {
		return entity.Unknown()
	}
	if v, ok := st.values[keyOf(node)]; ok && v != nil {
		return v
	}

	switch node.Type() {
	case "string":
		return entity.Literal(st.stringValue(node))
	case "template_string":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if node.NamedChild(i).Type() == "template_substitution" {
				return entity.Unknown()
			}
		}
		text := node.Content(st.src)
		if len(text) >= 2 {
			text = text[1 : len(text)-1]
		}
		return entity.Literal(unescape(text))
	case "number":
		if f, ok := parseNumber(node.Content(st.src)); ok {
			return entity.Literal(f)
		}
	case "true":
		return entity.Literal(true)
	case "false":
		return entity.Literal(false)
	case "null", "undefined":
		return entity.Literal(nil)
	case "identifier":
		name := node.Content(st.src)
		if v, ok := st.bindings[name]; ok {
			return v
		}
		if name == "undefined" {
			return entity.Literal(nil)
		}
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return st.evaluate(node.NamedChild(0), depth+1)
		}
	case "binary_expression":
		return st.evaluateBinary(node, depth)
	}
	return entity.Unknown()
}

func (st *walkState) evaluateBinary(node *sitter.Node, depth int) entity.Value {
	op := node.ChildByFieldName("operator")
	if op == nil || op.Type() != "+" {
		return entity.Unknown()
	}
	left, lok := st.evaluate(node.ChildByFieldName("left"), depth+1).LiteralValue()
	right, rok := st.evaluate(node.ChildByFieldName("right"), depth+1).LiteralValue()
	if !lok || !rok {
		return entity.Unknown()
	}
	lf, lnum := left.(float64)
	rf, rnum := right.(float64)
	if lnum && rnum {
		return entity.Literal(lf + rf)
	}
	_, lstr := left.(string)
	_, rstr := right.(string)
	if !lstr && !rstr {
		return entity.Unknown()
	}
	return entity.Literal(jsString(left) + jsString(right))
}

// jsString converts a literal to its JavaScript string form.
func jsString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e21 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return ""
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, "_", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(n), true
	}
	return 0, false
}

func (st *walkState) stringValue(node *sitter.Node) string {
	var b strings.Builder
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string_fragment":
			b.WriteString(child.Content(st.src))
		case "escape_sequence":
			b.WriteString(unescape(child.Content(st.src)))
		}
	}
	return b.String()
}

// unescape decodes JavaScript string escapes. Unknown escapes yield the
// escaped character.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case 'x':
			if r, ok := hexRune(s, i+1, 2); ok {
				b.WriteRune(r)
				i += 2
				continue
			}
			b.WriteByte('x')
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				if end := strings.IndexByte(s[i:], '}'); end > 0 {
					if r, ok := hexRune(s, i+2, end-2); ok {
						b.WriteRune(r)
						i += end
						continue
					}
				}
			}
			if r, ok := hexRune(s, i+1, 4); ok {
				b.WriteRune(r)
				i += 4
				continue
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hexRune(s string, start, n int) (rune, bool) {
	if n <= 0 || start+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	if err != nil || !utf8.ValidRune(rune(v)) {
		return 0, false
	}
	return rune(v), true
}
