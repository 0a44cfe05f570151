// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestSnapshotManager creates a SnapshotManager with in-memory DB.
func newTestSnapshotManager(t *testing.T) *SnapshotManager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	mgr, err := NewSnapshotManager(newTestDB(t), logger)
	if err != nil {
		t.Fatalf("NewSnapshotManager: %v", err)
	}
	return mgr
}

func TestNewSnapshotManager_NilArgs(t *testing.T) {
	if _, err := NewSnapshotManager(nil, slog.Default()); err == nil {
		t.Error("expected error for nil DB")
	}
	if _, err := NewSnapshotManager(newTestDB(t), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestSnapshotManager_SaveAndLoad(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()
	r := buildTestReport(t, "/proj", "run-1", scenarioFiles())

	meta, err := mgr.Save(ctx, r, "baseline")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.SnapshotID == "" || meta.Label != "baseline" || meta.ProjectHash != ProjectHash("/proj") {
		t.Errorf("meta = %+v", meta)
	}
	if meta.NodeCount != 3 || meta.CycleCount != 1 || meta.Truncated {
		t.Errorf("meta counts = %+v", meta)
	}

	loaded, loadedMeta, err := mgr.Load(ctx, meta.SnapshotID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.GraphHash != r.GraphHash {
		t.Errorf("loaded report = %s %s", loaded.RunID, loaded.GraphHash)
	}
	if len(loaded.Suggestions["A"]) != 1 {
		t.Errorf("suggestions lost: %v", loaded.Suggestions)
	}
	if loadedMeta.ContentHash != meta.ContentHash {
		t.Error("metadata mismatch")
	}
}

func TestSnapshotManager_LoadLatest(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	if _, err := mgr.Save(ctx, buildTestReport(t, "/proj", "run-1", nil), ""); err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Save(ctx, buildTestReport(t, "/proj", "run-2", scenarioFiles()), "")
	if err != nil {
		t.Fatal(err)
	}

	latest, meta, err := mgr.LoadLatest(ctx, ProjectHash("/proj"))
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if meta.SnapshotID != second.SnapshotID || latest.RunID != "run-2" {
		t.Errorf("latest = %s (%s)", meta.SnapshotID, latest.RunID)
	}
}

func TestSnapshotManager_ListFiltersAndLimits(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	for _, run := range []string{"r1", "r2", "r3"} {
		if _, err := mgr.Save(ctx, buildTestReport(t, "/one", run, nil), ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := mgr.Save(ctx, buildTestReport(t, "/two", "r4", nil), ""); err != nil {
		t.Fatal(err)
	}

	all, err := mgr.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List all = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAtMilli > all[i-1].CreatedAtMilli {
			t.Error("List not sorted newest first")
		}
	}

	one, _ := mgr.List(ctx, ProjectHash("/one"), 0)
	if len(one) != 3 {
		t.Errorf("List /one = %d, want 3", len(one))
	}
	limited, _ := mgr.List(ctx, "", 2)
	if len(limited) != 2 {
		t.Errorf("List limit 2 = %d", len(limited))
	}
}

func TestSnapshotManager_Delete(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	meta, err := mgr.Save(ctx, buildTestReport(t, "/proj", "run-1", nil), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Delete(ctx, meta.SnapshotID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := mgr.Load(ctx, meta.SnapshotID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load after delete: err = %v", err)
	}
	if _, _, err := mgr.LoadLatest(ctx, meta.ProjectHash); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("latest pointer should be cleared: err = %v", err)
	}
	if err := mgr.Delete(ctx, meta.SnapshotID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("second Delete: err = %v", err)
	}
}

func TestSnapshotManager_InvalidArgs(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	if _, err := mgr.Save(ctx, nil, ""); !errors.Is(err, ErrNilReport) {
		t.Errorf("Save(nil): err = %v", err)
	}
	if _, _, err := mgr.Load(ctx, ""); err == nil {
		t.Error("Load(\"\") should fail")
	}
	if _, _, err := mgr.LoadLatest(ctx, ""); err == nil {
		t.Error("LoadLatest(\"\") should fail")
	}
	if err := mgr.Delete(ctx, ""); err == nil {
		t.Error("Delete(\"\") should fail")
	}
}
