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
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key layout for report snapshots.
const (
	keyPrefixSnap      = "typegraph:snap:"
	keyPrefixSnapIndex = "typegraph:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"

	// DefaultSnapshotListLimit caps List when no limit is given.
	DefaultSnapshotListLimit = 100
)

// SnapshotMetadata describes a stored report.
type SnapshotMetadata struct {
	// SnapshotID is SHA256(ProjectRoot + ":" + RunID)[:16].
	SnapshotID string `json:"snapshot_id"`

	RunID       string `json:"run_id"`
	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16], used to group keys.
	ProjectHash string `json:"project_hash"`

	GraphHash string `json:"graph_hash"`
	Label     string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	NodeCount  int  `json:"node_count"`
	EdgeCount  int  `json:"edge_count"`
	CycleCount int  `json:"cycle_count"`
	Truncated  bool `json:"truncated"`

	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the gzip-compressed report in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the compressed report.
	ContentHash string `json:"content_hash"`
}

// SnapshotManager stores analysis reports in BadgerDB.
//
// Description:
//
//	Each snapshot is a gzip-compressed JSON Report plus metadata used for
//	listing. A per-project "latest" pointer tracks the newest save.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type SnapshotManager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotManager creates a manager over an opened BadgerDB. The caller
// owns the DB and closes it.
func NewSnapshotManager(db *badger.DB, logger *slog.Logger) (*SnapshotManager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &SnapshotManager{db: db, logger: logger}, nil
}

// Save persists a report.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	r - The report. Must not be nil.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*SnapshotMetadata - Metadata of the saved snapshot.
//	error - Non-nil if encoding or storage fails.
//
// Key Schema:
//
//	typegraph:snap:{projectHash}:{snapshotID}:data → gzip(JSON(Report))
//	typegraph:snap:{projectHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	typegraph:snap:{projectHash}:latest            → snapshotID
//	typegraph:snap:index:{snapshotID}              → projectHash
func (m *SnapshotManager) Save(ctx context.Context, r *Report, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if r == nil {
		return nil, ErrNilReport
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := compressReport(r)
	if err != nil {
		return nil, err
	}

	projectHash := ProjectHash(r.ProjectRoot)
	snapshotID := hashString(r.ProjectRoot + ":" + r.RunID)[:16]

	meta := &SnapshotMetadata{
		SnapshotID:     snapshotID,
		RunID:          r.RunID,
		ProjectRoot:    r.ProjectRoot,
		ProjectHash:    projectHash,
		GraphHash:      r.GraphHash,
		Label:          label,
		CreatedAtMilli: time.Now().UnixMilli(),
		NodeCount:      len(r.Nodes),
		EdgeCount:      len(r.Edges),
		CycleCount:     len(r.Cycles.Items),
		Truncated:      r.Cycles.Truncated,
		SchemaVersion:  r.SchemaVersion,
		CompressedSize: int64(len(compressed)),
		ContentHash:    hashBytes(compressed),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	keys := snapshotKeys(projectHash, snapshotID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keys.data, compressed); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(keys.meta, metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(keys.latest, []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set(keys.index, []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", r.ProjectRoot),
		slog.Int("node_count", meta.NodeCount),
		slog.Int("cycle_count", meta.CycleCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a report by snapshot ID.
//
// Outputs:
//
//	*Report - The stored report.
//	*SnapshotMetadata - Its metadata.
//	error - ErrSnapshotNotFound if the ID is unknown, or an integrity or
//	        decoding error.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (*Report, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}

	projectHash, err := m.readString(keyPrefixSnapIndex + snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return m.loadByKeys(projectHash, snapshotID)
}

// LoadLatest loads the newest snapshot for a project hash.
func (m *SnapshotManager) LoadLatest(ctx context.Context, projectHash string) (*Report, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if projectHash == "" {
		return nil, nil, fmt.Errorf("project hash must not be empty")
	}

	snapshotID, err := m.readString(keyPrefixSnap + projectHash + keySuffixLatest)
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", projectHash, err)
	}
	return m.loadByKeys(projectHash, snapshotID)
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	projectHash - Optional filter. If empty, returns all snapshots.
//	limit - Maximum number of results. If <= 0, DefaultSnapshotListLimit.
func (m *SnapshotManager) List(ctx context.Context, projectHash string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = DefaultSnapshotListLimit
	}

	prefix := keyPrefixSnap
	if projectHash != "" {
		prefix = keyPrefixSnap + projectHash + ":"
	}

	results := make([]*SnapshotMetadata, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}

			var meta SnapshotMetadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				m.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot and clears the latest pointer if it pointed
// at it.
func (m *SnapshotManager) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}

	projectHash, err := m.readString(keyPrefixSnapIndex + snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	keys := snapshotKeys(projectHash, snapshotID)
	err = m.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{keys.data, keys.meta, keys.index} {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", k, err)
			}
		}

		item, err := txn.Get(keys.latest)
		if err != nil {
			return nil
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("reading latest pointer: %w", err)
		}
		if string(current) == snapshotID {
			if err := txn.Delete(keys.latest); err != nil {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

type snapshotKeySet struct {
	data, meta, latest, index []byte
}

func snapshotKeys(projectHash, snapshotID string) snapshotKeySet {
	base := keyPrefixSnap + projectHash + ":" + snapshotID
	return snapshotKeySet{
		data:   []byte(base + keySuffixData),
		meta:   []byte(base + keySuffixMeta),
		latest: []byte(keyPrefixSnap + projectHash + keySuffixLatest),
		index:  []byte(keyPrefixSnapIndex + snapshotID),
	}
}

// loadByKeys reads, verifies and decodes one snapshot.
func (m *SnapshotManager) loadByKeys(projectHash, snapshotID string) (*Report, *SnapshotMetadata, error) {
	keys := snapshotKeys(projectHash, snapshotID)

	var compressed, metaJSON []byte
	err := m.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get(keys.data)
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, mapNotFound(err))
		}
		if compressed, err = dataItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying data for %s: %w", snapshotID, err)
		}

		metaItem, err := txn.Get(keys.meta)
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, mapNotFound(err))
		}
		if metaJSON, err = metaItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if actual := hashBytes(compressed); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected hash %s, got %s", snapshotID, meta.ContentHash, actual)
	}

	r, err := decompressReport(compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot %s: %w", snapshotID, err)
	}
	if r.SchemaVersion != ReportSchemaVersion {
		return nil, nil, fmt.Errorf("snapshot %s: %w: %q", snapshotID, ErrUnsupportedSchema, r.SchemaVersion)
	}
	return r, &meta, nil
}

// readString reads a small string value by key.
func (m *SnapshotManager) readString(key string) (string, error) {
	var value string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return mapNotFound(err)
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	return value, err
}

func mapNotFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrSnapshotNotFound
	}
	return err
}

func compressReport(r *Report) ([]byte, error) {
	jsonData, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing report: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressReport(data []byte) (*Report, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	var r Report
	if err := json.Unmarshal(jsonData, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &r, nil
}

// ProjectHash returns SHA256(projectRoot)[:16] for use as a key prefix.
// Exported so handlers can turn a project_root parameter into a filter.
func ProjectHash(projectRoot string) string {
	return hashString(projectRoot)[:16]
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
