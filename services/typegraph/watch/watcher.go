// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs analysis when source files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/walk"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 300 * time.Millisecond

// ErrNilHandler is returned by Run when no handler is given.
var ErrNilHandler = errors.New("change handler must not be nil")

// Op is the kind of file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file change.
type Change struct {
	// Path is relative to the watched root, slash-separated.
	Path string
	Op   Op
}

// Handler receives each batch of changes. A returned error is logged and
// watching continues.
type Handler func(ctx context.Context, changes []Change) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before delivering a
	// batch. Zero means DefaultDebounce.
	Debounce time.Duration

	// Extension selects source files, e.g. ".swift".
	Extension string

	// ExcludedDirs are directory names never watched.
	ExcludedDirs []string

	// Logger receives watch errors. Nil means slog.Default().
	Logger *slog.Logger
}

// Watcher watches a project tree and batches relevant changes.
//
// Description:
//
//	Source files with the configured extension, .gitignore files and the
//	project config file are relevant. Other changes are dropped. Changes
//	are collected until Debounce passes with no new change, then delivered
//	to the handler as one batch, deduplicated by path with the last
//	operation kept.
//
// Thread Safety: Run must be called at most once. The handler is called
// from the Run goroutine.
type Watcher struct {
	root     string
	opts     Options
	excluded map[string]bool
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

// New creates a watcher and registers every non-excluded directory under
// root.
//
// Inputs:
//
//	root - Project directory. Must exist.
//	opts - Watch options.
//
// Outputs:
//
//	*Watcher - Ready to Run. Call Close if Run is never called.
//	error - Non-nil if root is unusable or fsnotify fails.
func New(root string, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", walk.ErrRootNotDir, absRoot)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     absRoot,
		opts:     opts,
		excluded: map[string]bool{".git": true},
		fsw:      fsw,
		logger:   opts.Logger,
	}
	for _, d := range opts.ExcludedDirs {
		w.excluded[d] = true
	}

	if err := w.addRecursive(absRoot); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch paths: %w", err)
	}
	return w, nil
}

// Close releases the fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// WatchedDirs returns the number of registered directories.
func (w *Watcher) WatchedDirs() int {
	return len(w.fsw.WatchList())
}

// Run delivers change batches to handler until ctx is cancelled, then
// closes the watcher. A batch pending at cancellation is dropped.
//
// Outputs:
//
//	error - nil on cancellation, or non-nil if fsnotify closes its
//	  channels unexpectedly.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	defer w.fsw.Close()

	pending := make(map[string]Op)
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			rel, op, relevant := w.classify(event)
			if !relevant {
				continue
			}
			pending[rel] = op
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := drain(pending)
			w.logger.Debug("delivering changes", slog.Int("changes", len(batch)))
			if err := handler(ctx, batch); err != nil {
				w.logger.Error("change handler failed", slog.String("error", err.Error()))
			}
		}
	}
}

// classify converts an event and reports whether it should trigger a run.
// A new directory is registered and always triggers, since it may arrive
// already populated.
func (w *Watcher) classify(event fsnotify.Event) (string, Op, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", 0, false
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
		return "", 0, false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watching new directory failed",
					slog.String("dir", rel), slog.String("error", err.Error()))
			}
			return rel, OpCreate, true
		}
	}

	if !w.relevant(rel) {
		return "", 0, false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return "", 0, false
	}
	return rel, op, true
}

func (w *Watcher) relevant(rel string) bool {
	base := filepath.Base(rel)
	switch {
	case base == ".gitignore", base == walk.ProjectConfigFile:
		return true
	case w.opts.Extension != "" && strings.HasSuffix(base, w.opts.Extension):
		return true
	}
	return false
}

// ignored reports whether any segment of rel is an excluded directory.
func (w *Watcher) ignored(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if w.excluded[seg] {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func drain(pending map[string]Op) []Change {
	batch := make([]Change, 0, len(pending))
	for p, op := range pending {
		batch = append(batch, Change{Path: p, Op: op})
		delete(pending, p)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
