// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import "github.com/AleutianAI/typegraph/services/typegraph/graph"

// MaxAnalyzeSources bounds the files accepted by one analyze request.
const MaxAnalyzeSources = 10000

// MaxRequestBytes bounds the analyze request body.
const MaxRequestBytes = 64 << 20

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// AnalyzeRequest carries sources to analyse.
type AnalyzeRequest struct {
	// Sources maps slash paths to file contents.
	Sources map[string]string `json:"sources" binding:"required"`

	// ProjectRoot labels the report and keys snapshots. Defaults to
	// "request".
	ProjectRoot string `json:"project_root,omitempty"`

	// MaxCycles overrides the configured cycle cap when positive.
	MaxCycles int `json:"max_cycles,omitempty"`

	// CycleTimeout overrides the configured detection timeout, e.g. "2s".
	CycleTimeout string `json:"cycle_timeout,omitempty"`

	// Save persists the report as a snapshot.
	Save bool `json:"save,omitempty"`

	// Label is stored with the snapshot.
	Label string `json:"label,omitempty"`
}

// AnalyzeResponse holds the report and, when saved, its snapshot metadata.
type AnalyzeResponse struct {
	Report   *graph.Report           `json:"report"`
	Snapshot *graph.SnapshotMetadata `json:"snapshot,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Snapshots bool   `json:"snapshots"`
}

// ListSnapshotsResponse lists stored snapshots, newest first.
type ListSnapshotsResponse struct {
	Snapshots []*graph.SnapshotMetadata `json:"snapshots"`
}

// LoadSnapshotResponse returns a stored report.
type LoadSnapshotResponse struct {
	Metadata *graph.SnapshotMetadata `json:"metadata"`
	Report   *graph.Report           `json:"report"`
}
