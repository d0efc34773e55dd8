// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-scans add-on sources as they change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

// DefaultDebounce is how long changes accumulate before a re-scan.
const DefaultDebounce = 200 * time.Millisecond

// Operation is the kind of change behind an Event.
type Operation string

const (
	OpScan   Operation = "scan"
	OpDelete Operation = "delete"
)

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch recursively.
	Root string

	// Debounce is how long to wait for more changes. Defaults to
	// DefaultDebounce.
	Debounce time.Duration

	// Template seeds every per-file bundle with a supported matrix and
	// resources. May be nil.
	Template *findings.Bundle

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Event reports the outcome of one re-scan.
type Event struct {
	// Path is relative to Root, slash separated.
	Path string

	Op Operation

	// Findings holds the file's findings. Nil for deletes and errors.
	Findings *findings.Bundle

	Err error
}

// Watcher watches a directory and re-scans changed source files.
//
// Description:
//
//	Only files the scanner can classify are tracked. Changes are collected
//	for Config.Debounce and then processed in path order, one Event each.
//	Hidden directories are not watched.
//
// Thread Safety: Start must be called once. Events may be read from any
// goroutine.
type Watcher struct {
	cfg     Config
	scanner *scanner.Scanner
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	events chan Event
}

// New creates a watcher over cfg.Root.
func New(sc *scanner.Scanner, cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch: root must not be empty")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Template == nil {
		cfg.Template = findings.NewBundle()
	}
	return &Watcher{
		cfg:     cfg,
		scanner: sc,
		fsw:     fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		events:  make(chan Event, 100),
	}, nil
}

// Events returns the event channel. It is closed when the watch loop ends.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds watches and runs the event loop until ctx is done or Close
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.cfg.Root); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Root, err)
	}
	go w.loop(ctx)

	w.logger.Info("file watcher started",
		slog.String("root", w.cfg.Root),
		slog.Duration("debounce", w.cfg.Debounce),
	)
	return nil
}

// Close stops watching. The event channel closes once the loop exits.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent records a change to a scannable file, or watches a new
// directory.
func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
				if err := w.fsw.Add(ev.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						slog.String("path", ev.Name),
						slog.String("error", err.Error()),
					)
				}
			}
			return
		}
	}
	if _, ok := scanner.ClassifyFile(ev.Name); !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending[ev.Name] |= ev.Op
	w.pendingMu.Unlock()
}

// flushPending re-scans accumulated changes in path order.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	paths := make([]string, 0, len(toProcess))
	for p := range toProcess {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		event := Event{Path: w.relPath(path), Op: OpScan}

		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			event.Op = OpDelete
			w.send(ctx, event)
			continue
		}
		if err != nil {
			event.Err = err
			w.send(ctx, event)
			continue
		}

		b := w.cfg.Template.Fork()
		if err := w.scanner.ScanFile(ctx, event.Path, content, b); err != nil {
			event.Err = err
		}
		event.Findings = b
		w.send(ctx, event)
	}
}

func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) send(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}
