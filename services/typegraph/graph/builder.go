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
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
	"go.opentelemetry.io/otel/trace"
)

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseCollecting indicates symbols are being collected as nodes.
	ProgressPhaseCollecting ProgressPhase = iota

	// ProgressPhaseResolvingEdges indicates edges are being resolved.
	ProgressPhaseResolvingEdges

	// ProgressPhaseFinalizing indicates the graph is being finalized.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseCollecting:
		return "collecting"
	case ProgressPhaseResolvingEdges:
		return "resolving_edges"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	Phase          ProgressPhase
	FilesTotal     int
	FilesProcessed int
	NodesCreated   int
	EdgesCreated   int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// ProjectRoot is recorded on the graph.
	ProjectRoot string

	// ProgressCallback is called after each file in each phase. May be nil.
	ProgressCallback ProgressFunc

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithProjectRoot sets the project root recorded on the graph.
func WithProjectRoot(root string) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProjectRoot = root
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithBuilderMaxNodes sets the node capacity of built graphs.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the edge capacity of built graphs.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// Builder turns per-file extraction results into a Graph.
//
// Thread Safety:
//
//	A Builder holds only options and may be shared. Each Build call uses
//	its own state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{options: options}
}

// buildState holds mutable state for a single build.
type buildState struct {
	graph     *Graph
	result    *BuildResult
	startTime time.Time
}

// Build constructs a frozen graph from extraction results.
//
// Description:
//
//	Files are processed in path order regardless of input order, so that
//	name collisions resolve the same way on every run. All declarations
//	become nodes before any edge is resolved; an edge is added only when
//	its target names a node, otherwise it is recorded in
//	BuildResult.Discarded. Results carrying Err are listed in FileErrors
//	and contribute nothing.
//
// Inputs:
//
//	ctx - Context for cancellation. Cancellation returns a partial,
//	      unfrozen graph with Incomplete set.
//	files - Extraction results, one per file.
//
// Outputs:
//
//	*BuildResult - Never nil.
//	error - Reserved for future use; always nil.
//
// Build Phases:
//
//  1. COLLECT: Add every declaration as a node (last write wins)
//  2. RESOLVE: Add edges whose target exists, discard the rest
//  3. FINALIZE: Freeze graph and compute statistics
func (b *Builder) Build(ctx context.Context, files []extract.FileResult) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, len(files))
	defer span.End()

	ordered := make([]extract.FileResult, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	state := &buildState{
		graph: NewGraph(b.options.ProjectRoot,
			WithMaxNodes(b.options.MaxNodes),
			WithMaxEdges(b.options.MaxEdges),
		),
		result: &BuildResult{
			FileErrors:       make([]FileError, 0),
			Discarded:        make([]DiscardedEdge, 0),
			FileDeclarations: make(map[string]int),
		},
		startTime: time.Now(),
	}
	state.result.Graph = state.graph

	if err := b.collectPhase(ctx, state, ordered); err != nil {
		return b.finishIncomplete(ctx, state, span), nil
	}
	if err := b.resolvePhase(ctx, state, ordered); err != nil {
		return b.finishIncomplete(ctx, state, span), nil
	}

	state.graph.Freeze()
	b.finishStats(state)
	b.reportProgress(state, ProgressPhaseFinalizing, len(ordered), len(ordered))

	setBuildSpanResult(span, state.result.Stats, false)
	recordBuildMetrics(ctx, time.Since(state.startTime), state.result.Stats, true)

	return state.result, nil
}

// collectPhase adds all declarations as nodes.
func (b *Builder) collectPhase(ctx context.Context, state *buildState, files []extract.FileResult) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.Err != nil {
			state.result.FileErrors = append(state.result.FileErrors, FileError{
				FilePath: f.Path,
				Err:      f.Err,
			})
			state.result.Stats.FilesFailed++
			continue
		}

		for _, sym := range f.Symbols {
			state.result.Stats.SymbolsSeen++
			collapsed, err := state.graph.AddNode(sym)
			if err != nil {
				if errors.Is(err, ErrMaxNodesExceeded) {
					return err
				}
				state.result.FileErrors = append(state.result.FileErrors, FileError{
					FilePath: f.Path,
					Err:      fmt.Errorf("add node %s: %w", sym.Name, err),
				})
				continue
			}
			if collapsed {
				state.result.Stats.NodesCollapsed++
			}
		}

		state.result.FileDeclarations[f.Path] = len(f.Symbols)
		state.result.Stats.FilesProcessed++
		state.result.Stats.NodesCreated = state.graph.NodeCount()
		b.reportProgress(state, ProgressPhaseCollecting, len(files), i+1)
	}
	return nil
}

// resolvePhase adds edges whose target is a known node.
func (b *Builder) resolvePhase(ctx context.Context, state *buildState, files []extract.FileResult) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Err != nil {
			continue
		}

		for _, e := range f.Edges {
			state.result.Stats.EdgesSeen++

			if !state.graph.HasNode(e.Target) {
				state.result.Discarded = append(state.result.Discarded, DiscardedEdge{
					Source:     e.Source.Name,
					SourceFile: f.Path,
					SourceLine: e.Source.Line,
					Target:     e.Target,
					Kind:       e.Kind,
				})
				state.result.Stats.DiscardedEdges++
				continue
			}

			added, err := state.graph.AddEdge(e.Source.Name, e.Target, e.Kind)
			if err != nil {
				if errors.Is(err, ErrMaxEdgesExceeded) {
					return err
				}
				// Source dropped during collection (invalid symbol).
				state.result.Discarded = append(state.result.Discarded, DiscardedEdge{
					Source:     e.Source.Name,
					SourceFile: f.Path,
					SourceLine: e.Source.Line,
					Target:     e.Target,
					Kind:       e.Kind,
				})
				state.result.Stats.DiscardedEdges++
				continue
			}
			if !added {
				state.result.Stats.EdgesDuplicate++
			}
		}

		state.result.Stats.EdgesCreated = state.graph.EdgeCount()
		b.reportProgress(state, ProgressPhaseResolvingEdges, len(files), i+1)
	}
	return nil
}

// finishIncomplete marks a cancelled build and records its metrics.
func (b *Builder) finishIncomplete(ctx context.Context, state *buildState, span trace.Span) *BuildResult {
	state.result.Incomplete = true
	b.finishStats(state)
	setBuildSpanResult(span, state.result.Stats, true)
	recordBuildMetrics(ctx, time.Since(state.startTime), state.result.Stats, false)
	return state.result
}

func (b *Builder) finishStats(state *buildState) {
	duration := time.Since(state.startTime)
	state.result.Stats.NodesCreated = state.graph.NodeCount()
	state.result.Stats.EdgesCreated = state.graph.EdgeCount()
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Stats.DurationMicro = duration.Microseconds()
}

// reportProgress calls the progress callback if configured.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}

	b.options.ProgressCallback(BuildProgress{
		Phase:          phase,
		FilesTotal:     total,
		FilesProcessed: processed,
		NodesCreated:   state.graph.NodeCount(),
		EdgesCreated:   state.graph.EdgeCount(),
	})
}
