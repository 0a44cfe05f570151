// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph models declared types as a directed multigraph and analyses
// it for circular dependencies.
//
// # Node Identity
//
// Nodes are keyed by type name only. Declarations that share a name, in
// the same file or across files, collapse into one node whose attributes
// come from the last declaration merged. Files are merged in path order,
// so the winner is reproducible. Edge targets are resolved by name too,
// which keeps the two policies consistent. Two unrelated types with the
// same name therefore share edges; BuildStats.NodesCollapsed reports how
// often that happened.
//
// # Edges
//
// Edges of different kinds between the same pair stay distinct. An
// identical (source, target, kind) triple is stored once.
//
// # Lifecycle
//
//  1. Build with Builder.Build (or NewGraph plus AddNode/AddEdge).
//  2. Freeze.
//  3. Run DetectCycles and Suggest, then export with NewReport.
//
// A frozen graph is safe for concurrent reads.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when modifying a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidNode is returned for symbols with an empty name or an
	// unknown kind.
	ErrInvalidNode = errors.New("invalid node")

	// ErrMaxNodesExceeded is returned when the node capacity is reached.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the edge capacity is reached.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrNilGraph is returned when an operation receives a nil graph.
	ErrNilGraph = errors.New("graph must not be nil")

	// ErrNilReport is returned when an operation receives a nil report.
	ErrNilReport = errors.New("report must not be nil")

	// ErrUnsupportedSchema is returned when a stored report has an unknown
	// schema version.
	ErrUnsupportedSchema = errors.New("unsupported report schema version")

	// ErrSnapshotNotFound is returned when a snapshot ID has no entry.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
