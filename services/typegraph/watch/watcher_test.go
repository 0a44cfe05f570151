// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func startWatcher(t *testing.T, root string) <-chan []Change {
	t.Helper()
	w, err := New(root, Options{
		Debounce:     50 * time.Millisecond,
		Extension:    ".swift",
		ExcludedDirs: []string{"Pods"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batches := make(chan []Change, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changes []Change) error {
			batches <- changes
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan []Change) []Change {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for changes")
		return nil
	}
}

func TestWatcher_DeliversSourceChanges(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "A.swift"), []byte("struct A {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	batch := waitBatch(t, batches)
	if len(batch) != 1 || batch[0].Path != "A.swift" {
		t.Fatalf("batch = %+v, want only A.swift", batch)
	}
}

func TestWatcher_IgnoresExcludedDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Pods"), 0o755); err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "Pods", "Lib.swift"), []byte("class Lib {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "App.swift"), []byte("class App {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, c := range waitBatch(t, batches) {
		if c.Path == "Pods/Lib.swift" {
			t.Errorf("excluded change delivered: %+v", c)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing root err = %v", err)
	}

	file := filepath.Join(t.TempDir(), "f.swift")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, Options{}); err == nil {
		t.Error("expected error for file root")
	}

	w, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Run(context.Background(), nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler err = %v", err)
	}
}

func TestWatcher_Classify(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, Options{Extension: ".swift", ExcludedDirs: []string{"build"}})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if w.WatchedDirs() != 1 {
		t.Errorf("WatchedDirs = %d, want 1", w.WatchedDirs())
	}

	tests := []struct {
		name   string
		event  fsnotify.Event
		want   bool
		wantOp Op
	}{
		{"swift write", fsnotify.Event{Name: filepath.Join(root, "A.swift"), Op: fsnotify.Write}, true, OpWrite},
		{"swift remove", fsnotify.Event{Name: filepath.Join(root, "A.swift"), Op: fsnotify.Remove}, true, OpRemove},
		{"gitignore", fsnotify.Event{Name: filepath.Join(root, ".gitignore"), Op: fsnotify.Write}, true, OpWrite},
		{"project config", fsnotify.Event{Name: filepath.Join(root, "typegraph.config.yaml"), Op: fsnotify.Rename}, true, OpRename},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "A.swift"), Op: fsnotify.Chmod}, false, 0},
		{"other extension", fsnotify.Event{Name: filepath.Join(root, "A.m"), Op: fsnotify.Write}, false, 0},
		{"excluded dir", fsnotify.Event{Name: filepath.Join(root, "build", "A.swift"), Op: fsnotify.Write}, false, 0},
		{"git dir", fsnotify.Event{Name: filepath.Join(root, ".git", "A.swift"), Op: fsnotify.Write}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, op, ok := w.classify(tt.event)
			if ok != tt.want {
				t.Fatalf("relevant = %v, want %v", ok, tt.want)
			}
			if ok && op != tt.wantOp {
				t.Errorf("op = %v, want %v", op, tt.wantOp)
			}
		})
	}
}

func TestOp_String(t *testing.T) {
	if OpRename.String() != "rename" || Op(99).String() != "unknown" {
		t.Error("unexpected Op strings")
	}
}
