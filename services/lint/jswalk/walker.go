// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jswalk is the reference syntax-tree walker for script content.
//
// It parses JavaScript with tree-sitter, resolves static member paths
// against an entity registry, and infers literal values for handler
// arguments. It does not interpret the program: bindings are flat per file
// and only constant initializers are tracked.
package jswalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/addonlint/services/lint/entity"
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

var (
	// ErrFileTooLarge indicates the script exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the script is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid UTF-8 content")
)

// DefaultMaxFileSize is the default size limit for a script.
const DefaultMaxFileSize = 10 * 1024 * 1024

// maxEvalDepth bounds recursion when folding constant expressions.
const maxEvalDepth = 64

var tracer = otel.Tracer("addonlint.lint.jswalk")

// Options configures a Walker.
type Options struct {
	// MaxFileSize is the largest script, in bytes, that will be parsed.
	MaxFileSize int

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger

	// Services maps service getter paths ("Services.obs") to the interface
	// they return.
	Services map[string]string
}

// Option modifies Options.
type Option func(*Options)

// WithMaxFileSize sets the size limit.
func WithMaxFileSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.MaxFileSize = size
		}
	}
}

// WithServiceGetters sets the service getter table used to type member
// calls such as Services.obs.addObserver.
func WithServiceGetters(services map[string]string) Option {
	return func(o *Options) {
		o.Services = services
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Walker resolves entity references in scripts.
//
// Thread Safety: Safe for concurrent use. Each Walk call owns its own
// parser and traversal state.
type Walker struct {
	registry *entity.Registry
	options  Options
}

// New creates a Walker over registry.
//
// Example:
//
//	w := jswalk.New(cat.Entities, jswalk.WithMaxFileSize(5*1024*1024))
//	stats, err := w.Walk(ctx, jswalk.Input{File: "main.js", Content: src}, bundle)
func New(registry *entity.Registry, opts ...Option) *Walker {
	o := Options{MaxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Walker{registry: registry, options: o}
}

// Input is one script to walk.
type Input struct {
	File    string
	Content []byte

	// Resources exposes package resources to handlers. May be nil.
	Resources entity.ResourceProvider
}

// Stats describes one walk.
type Stats struct {
	Nodes    int
	Resolved int
}

// Walk parses the script and invokes handlers for every resolved reference.
//
// Description:
//
//	For each call, member access, subscript access or free identifier the
//	walker flattens the static path ("a.b.c") and looks up the longest
//	registered suffix. On a hit it runs the handler, then its roles in
//	order: Value, Return (calls only) and Dangerous.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	in - The script.
//	sink - Receives findings emitted by handlers.
//
// Outputs:
//
//	Stats - Node and resolution counts.
//	error - ErrFileTooLarge, ErrInvalidContent, or a parse/cancellation error.
//
// Thread Safety: Safe for concurrent use.
func (w *Walker) Walk(ctx context.Context, in Input, sink findings.Sink) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, fmt.Errorf("walk canceled before start: %w", err)
	}
	if len(in.Content) > w.options.MaxFileSize {
		return Stats{}, fmt.Errorf("%s: %w (%d > %d bytes)", in.File, ErrFileTooLarge, len(in.Content), w.options.MaxFileSize)
	}
	if !utf8.Valid(in.Content) {
		return Stats{}, fmt.Errorf("%s: %w", in.File, ErrInvalidContent)
	}

	ctx, span := tracer.Start(ctx, "jswalk.Walker.Walk")
	defer span.End()

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, in.Content)
	if err != nil {
		return Stats{}, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	st := &walkState{
		walker:    w,
		file:      in.File,
		src:       in.Content,
		lines:     strings.Split(string(in.Content), "\n"),
		resources: in.Resources,
		sink:      sink,
		bindings:  make(map[string]entity.Value),
		ifaces:    make(map[string]string),
		values:    make(map[nodeKey]entity.Value),
		handled:   make(map[nodeKey]bool),
	}

	root := tree.RootNode()
	st.collectBindings(root)
	if err := st.walk(ctx, root); err != nil {
		return st.stats, err
	}

	span.SetAttributes(
		attribute.String("file", in.File),
		attribute.Int("nodes", st.stats.Nodes),
		attribute.Int("resolved", st.stats.Resolved),
	)
	w.options.Logger.Debug("script walked",
		slog.String("file", in.File),
		slog.Int("nodes", st.stats.Nodes),
		slog.Int("resolved", st.stats.Resolved),
	)
	return st.stats, nil
}

// nodeKey identifies a node within one tree.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && keyOf(a) == keyOf(b)
}

// walkState is the per-walk traversal state. Owned by one goroutine.
type walkState struct {
	walker    *Walker
	file      string
	src       []byte
	lines     []string
	resources entity.ResourceProvider
	sink      findings.Sink
	bindings  map[string]entity.Value
	ifaces    map[string]string
	values    map[nodeKey]entity.Value
	handled   map[nodeKey]bool
	stats     Stats
}

// walk visits nodes in source order with an explicit stack.
func (st *walkState) walk(ctx context.Context, root *sitter.Node) error {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		st.stats.Nodes++
		if st.stats.Nodes%100 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("walk canceled: %w", err)
			}
		}

		st.visit(node)

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

func (st *walkState) visit(node *sitter.Node) {
	if st.handled[keyOf(node)] {
		return
	}
	switch node.Type() {
	case "call_expression":
		callee := node.ChildByFieldName("function")
		st.resolveCall(node, callee)
	case "new_expression":
		callee := node.ChildByFieldName("constructor")
		st.resolveCall(node, callee)
	case "member_expression", "subscript_expression":
		st.resolveNode(node, nil, false)
	case "identifier":
		if isReference(node) {
			st.resolveNode(node, nil, false)
		}
	}
}

func (st *walkState) resolveCall(call, callee *sitter.Node) {
	if callee == nil {
		return
	}
	switch callee.Type() {
	case "member_expression", "subscript_expression", "identifier":
	default:
		return
	}
	st.handled[keyOf(callee)] = true
	st.resolveNode(callee, argumentNodes(call), true)
}

// resolveNode looks up the path of node and runs the handler roles.
func (st *walkState) resolveNode(node *sitter.Node, args []entity.Node, called bool) {
	parts := st.path(node)
	if len(parts) == 0 {
		return
	}
	for i := 0; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], ".")
		h, ok := st.walker.registry.Resolve(suffix)
		if !ok {
			continue
		}
		st.stats.Resolved++
		st.invoke(node, suffix, h, args, called)
		return
	}
}

func (st *walkState) invoke(node *sitter.Node, path string, h entity.Handler, args []entity.Node, called bool) {
	ctx := &nodeContext{st: st, node: node}
	caps := h(ctx)
	if caps.Value != nil {
		v := caps.Value(ctx)
		st.values[keyOf(node)] = v
		st.bindDeclared(node, v)
	}
	if called && caps.Return != nil {
		caps.Return(ctx, args)
	}
	if caps.Dangerous != nil {
		if msg, dangerous := caps.Dangerous(ctx); dangerous {
			entity.ReportDangerous(ctx, path, msg)
		}
	}
}

// path flattens a member chain into its static parts. An object typed to an
// XPCOM interface collapses to the interface name. Any other dynamic object
// (a call result, for example) is dropped so that the remaining suffix can
// still resolve; a dynamic property ends the path.
func (st *walkState) path(node *sitter.Node) []string {
	switch node.Type() {
	case "identifier":
		return []string{node.Content(st.src)}
	case "this":
		return []string{"this"}
	case "member_expression":
		prop := node.ChildByFieldName("property")
		if prop == nil {
			return nil
		}
		prefix := st.objectPath(node.ChildByFieldName("object"))
		return append(prefix, prop.Content(st.src))
	case "subscript_expression":
		idx := node.ChildByFieldName("index")
		if idx == nil {
			return nil
		}
		v, ok := st.evaluate(idx, 0).LiteralValue()
		if !ok {
			return nil
		}
		name, ok := v.(string)
		if !ok || name == "" {
			return nil
		}
		prefix := st.objectPath(node.ChildByFieldName("object"))
		return append(prefix, name)
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return st.path(node.NamedChild(0))
		}
	}
	return nil
}

func (st *walkState) objectPath(obj *sitter.Node) []string {
	if obj == nil {
		return nil
	}
	if obj.Type() == "member_expression" {
		parts := st.path(obj)
		if iface, ok := st.serviceInterface(parts); ok {
			return []string{iface}
		}
		return parts
	}
	if iface, ok := st.interfaceOf(obj, 0); ok {
		return []string{iface}
	}
	return st.path(obj)
}

// isReference reports whether an identifier is used as an expression
// rather than declared or used as a label.
func isReference(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "formal_parameters", "import_specifier", "import_clause", "namespace_import",
		"export_specifier", "labeled_statement", "break_statement", "continue_statement":
		return false
	case "variable_declarator", "function_declaration", "function_expression", "function",
		"generator_function_declaration", "generator_function", "class_declaration", "class",
		"method_definition":
		return !sameNode(parent.ChildByFieldName("name"), node)
	case "arrow_function":
		return !sameNode(parent.ChildByFieldName("parameter"), node)
	case "catch_clause":
		return !sameNode(parent.ChildByFieldName("parameter"), node)
	case "member_expression", "subscript_expression":
		// Covered by the path of the enclosing access unless it is the
		// root of the chain.
		return sameNode(parent.ChildByFieldName("object"), node)
	}
	return true
}

func argumentNodes(call *sitter.Node) []entity.Node {
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil
	}
	n := int(argsNode.NamedChildCount())
	args := make([]entity.Node, 0, n)
	for i := 0; i < n; i++ {
		child := argsNode.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		args = append(args, child)
	}
	return args
}
