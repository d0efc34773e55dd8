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

	"github.com/AleutianAI/addonlint/services/lint/entity"
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

// nodeContext is the entity.Context for one resolved node.
type nodeContext struct {
	st   *walkState
	node *sitter.Node
}

func (c *nodeContext) File() string { return c.st.file }

// Line is 1-based.
func (c *nodeContext) Line() int { return int(c.node.StartPoint().Row) + 1 }

// Column is a 0-based byte offset.
func (c *nodeContext) Column() int { return int(c.node.StartPoint().Column) }

func (c *nodeContext) Snippet() string {
	row := int(c.node.StartPoint().Row)
	if row < 0 || row >= len(c.st.lines) {
		return ""
	}
	return strings.TrimSpace(c.st.lines[row])
}

func (c *nodeContext) Sink() findings.Sink { return c.st.sink }

func (c *nodeContext) ResolveValue(n entity.Node) entity.Value {
	node, ok := n.(*sitter.Node)
	if !ok || node == nil {
		return entity.Unknown()
	}
	return c.st.evaluate(node, 0)
}

func (c *nodeContext) Resource(key string) (any, bool) {
	if c.st.resources == nil {
		return nil, false
	}
	return c.st.resources.Resource(key)
}
