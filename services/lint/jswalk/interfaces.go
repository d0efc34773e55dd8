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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// interfaceMethods are the XPCOM calls whose result is typed by their
// interface argument.
var interfaceMethods = map[string]bool{
	"getService":     true,
	"createInstance": true,
	"QueryInterface": true,
	"getInterface":   true,
}

// interfaceOf reports the XPCOM interface an expression evaluates to.
//
// Description:
//
//	Recognized forms:
//	  X.getService(Ci.nsIFoo), X.createInstance(Ci.nsIFoo),
//	  X.QueryInterface(Ci.nsIFoo), X.getInterface(Ci.nsIFoo)
//	  (Components.interfaces.nsIFoo and Ci["nsIFoo"] work as well),
//	  an identifier bound to one of the above,
//	  a service getter from the configured table (Services.obs).
func (st *walkState) interfaceOf(node *sitter.Node, depth int) (string, bool) {
	if node == nil || depth > maxEvalDepth {
		return "", false
	}
	switch node.Type() {
	case "identifier":
		iface, ok := st.ifaces[node.Content(st.src)]
		return iface, ok
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return st.interfaceOf(node.NamedChild(0), depth+1)
		}
	case "member_expression":
		return st.serviceInterface(st.path(node))
	case "call_expression":
		callee := node.ChildByFieldName("function")
		if callee == nil || callee.Type() != "member_expression" {
			return "", false
		}
		prop := callee.ChildByFieldName("property")
		if prop == nil || !interfaceMethods[prop.Content(st.src)] {
			return "", false
		}
		args := argumentNodes(node)
		if len(args) == 0 {
			return "", false
		}
		arg, _ := args[0].(*sitter.Node)
		return st.interfaceName(arg)
	}
	return "", false
}

// interfaceName extracts "nsIFoo" from Ci.nsIFoo or
// Components.interfaces.nsIFoo.
func (st *walkState) interfaceName(node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	parts := st.path(node)
	if len(parts) < 2 {
		return "", false
	}
	switch strings.Join(parts[:len(parts)-1], ".") {
	case "Ci", "Components.interfaces":
		return parts[len(parts)-1], true
	}
	return "", false
}

// serviceInterface looks a flattened path up in the service getter table.
func (st *walkState) serviceInterface(parts []string) (string, bool) {
	if len(parts) == 0 || len(st.walker.options.Services) == 0 {
		return "", false
	}
	iface, ok := st.walker.options.Services[strings.Join(parts, ".")]
	return iface, ok
}
