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

import "fmt"

// FileError records a file that contributed nothing to the graph.
type FileError struct {
	// FilePath is the slash-separated path relative to the project root.
	FilePath string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e FileError) Unwrap() error {
	return e.Err
}

// BuildStats contains statistics about a build.
type BuildStats struct {
	// FilesProcessed is the number of files merged into the graph.
	FilesProcessed int

	// FilesFailed is the number of files skipped because of read errors.
	FilesFailed int

	// SymbolsSeen is the number of declarations across all files.
	SymbolsSeen int

	// NodesCreated is the number of distinct nodes.
	NodesCreated int

	// NodesCollapsed counts declarations merged into an existing node.
	NodesCollapsed int

	// EdgesSeen is the number of extracted edges before resolution.
	EdgesSeen int

	// EdgesCreated is the number of edges in the graph.
	EdgesCreated int

	// EdgesDuplicate counts resolved edges identical to one already stored.
	EdgesDuplicate int

	// DiscardedEdges counts edges whose target names no node.
	DiscardedEdges int

	// DurationMilli is the total build time in milliseconds.
	DurationMilli int64

	// DurationMicro is the total build time in microseconds.
	DurationMicro int64
}

// BuildResult contains the result of a build.
//
// Builds are resilient: unreadable files and unresolved edges are recorded
// here and never fail the build.
type BuildResult struct {
	// Graph is the constructed graph. Partial when Incomplete is true.
	Graph *Graph

	// FileErrors lists files that could not be read.
	FileErrors []FileError

	// Discarded lists edges dropped because their target was never declared.
	Discarded []DiscardedEdge

	// FileDeclarations maps each processed file to its declaration count.
	FileDeclarations map[string]int

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build was cancelled or hit a capacity limit.
	Incomplete bool
}

// HasErrors returns true if any file failed.
func (r *BuildResult) HasErrors() bool {
	return len(r.FileErrors) > 0
}

// Success returns true if the build completed without file errors.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && !r.HasErrors()
}
