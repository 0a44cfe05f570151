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
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

// ReportSchemaVersion is the version of the report format.
const ReportSchemaVersion = "1.0"

// Report is the exported result of one analysis run.
//
// Description:
//
//	Contains the graph, the detected cycles with their truncation state,
//	the suggestions, and diagnostics about what was dropped. Nodes are
//	sorted by name and edges by source, target and kind, so two runs over
//	the same sources differ only in RunID and GeneratedAtMilli.
//
// Thread Safety: Report is a value type with no internal state.
type Report struct {
	// SchemaVersion identifies the report format version.
	SchemaVersion string `json:"schema_version"`

	// RunID identifies the analysis run.
	RunID string `json:"run_id"`

	// ProjectRoot is the analysed directory.
	ProjectRoot string `json:"project_root"`

	// GeneratedAtMilli is the Unix timestamp in milliseconds of the report.
	GeneratedAtMilli int64 `json:"generated_at_milli"`

	// GraphHash is Graph.Hash of the analysed graph.
	GraphHash string `json:"graph_hash"`

	Nodes       []ReportNode        `json:"nodes"`
	Edges       []ReportEdge        `json:"edges"`
	Cycles      ReportCycles        `json:"cycles"`
	Suggestions map[string][]string `json:"suggestions"`
	Diagnostics ReportDiagnostics   `json:"diagnostics"`
	Summary     ReportSummary       `json:"summary"`
}

// ReportNode is the exported form of a Node.
type ReportNode struct {
	Name string       `json:"name"`
	Kind extract.Kind `json:"kind"`
	File string       `json:"file"`
	Line int          `json:"line"`
}

// ReportEdge is the exported form of an Edge.
type ReportEdge struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Kind   extract.EdgeKind `json:"kind"`
}

// ReportCycles holds the detected cycles and their truncation state.
type ReportCycles struct {
	Items            [][]string `json:"items"`
	Truncated        bool       `json:"truncated"`
	CycleCountFound  int        `json:"cycle_count_found"`
	TruncationReason string     `json:"truncation_reason,omitempty"`
}

// ReportFileError is the exported form of a FileError.
type ReportFileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ReportDiagnostics lists what the analysis could not use.
type ReportDiagnostics struct {
	DiscardedEdges   int               `json:"discarded_edges"`
	Discarded        []DiscardedEdge   `json:"discarded"`
	ExternalTargets  []ExternalTarget  `json:"external_targets"`
	FileErrors       []ReportFileError `json:"file_errors"`
	IncompleteBuild  bool              `json:"incomplete_build"`
	CollapsedSymbols int               `json:"collapsed_symbols"`
}

// FileDeclarationCount records how many declarations a file holds.
type FileDeclarationCount struct {
	File         string `json:"file"`
	Declarations int    `json:"declarations"`
}

// ReportSummary holds aggregate statistics.
type ReportSummary struct {
	FilesScanned     int                    `json:"files_scanned"`
	FilesFailed      int                    `json:"files_failed"`
	Symbols          int                    `json:"symbols"`
	Nodes            int                    `json:"nodes"`
	Edges            int                    `json:"edges"`
	InheritanceEdges int                    `json:"inheritance_edges"`
	UsageEdges       int                    `json:"usage_edges"`
	SelfLoops        int                    `json:"self_loops"`
	Cycles           int                    `json:"cycles"`
	LongestCycle     int                    `json:"longest_cycle"`
	KindCounts       map[string]int         `json:"kind_counts"`
	MultiDeclFiles   []FileDeclarationCount `json:"multi_declaration_files"`
	BuildMicros      int64                  `json:"build_micros"`
	DetectMicros     int64                  `json:"detect_micros"`
}

// NewReport assembles a Report from the analysis stages.
//
// Inputs:
//
//	runID - Identifier for this run.
//	build - Result of Builder.Build. Must not be nil.
//	cycles - Result of DetectCycles. Nil means no detection was run.
//	suggestions - Result of Suggest. May be nil.
//
// Outputs:
//
//	*Report - The assembled report.
func NewReport(runID string, build *BuildResult, cycles *CycleResult, suggestions Suggestions) *Report {
	g := build.Graph
	r := &Report{
		SchemaVersion:    ReportSchemaVersion,
		RunID:            runID,
		ProjectRoot:      g.ProjectRoot,
		GeneratedAtMilli: time.Now().UnixMilli(),
		GraphHash:        g.Hash(),
		Nodes:            make([]ReportNode, 0, g.NodeCount()),
		Edges:            make([]ReportEdge, 0, g.EdgeCount()),
		Cycles:           ReportCycles{Items: make([][]string, 0)},
		Suggestions:      make(map[string][]string, len(suggestions)),
	}

	kinds := make(map[string]int, len(extract.Kinds))
	for _, k := range extract.Kinds {
		kinds[k.String()] = 0
	}
	for _, node := range g.Nodes() {
		r.Nodes = append(r.Nodes, ReportNode{Name: node.Name, Kind: node.Kind, File: node.File, Line: node.Line})
		kinds[node.Kind.String()]++
	}

	var inheritance, usage, selfLoops int
	for _, e := range g.Edges() {
		r.Edges = append(r.Edges, ReportEdge{Source: e.Source, Target: e.Target, Kind: e.Kind})
		switch e.Kind {
		case extract.EdgeKindInheritance:
			inheritance++
		case extract.EdgeKindUsage:
			usage++
		}
		if e.Source == e.Target {
			selfLoops++
		}
	}

	longest := 0
	if cycles != nil {
		for _, c := range cycles.Cycles {
			r.Cycles.Items = append(r.Cycles.Items, append([]string(nil), c...))
			if len(c) > longest {
				longest = len(c)
			}
		}
		r.Cycles.Truncated = cycles.Truncated
		r.Cycles.CycleCountFound = cycles.CountFound
		r.Cycles.TruncationReason = string(cycles.Reason)
		r.Summary.DetectMicros = cycles.DurationMicro
	}

	for name, msgs := range suggestions {
		r.Suggestions[name] = append([]string(nil), msgs...)
	}

	r.Diagnostics = ReportDiagnostics{
		DiscardedEdges:   len(build.Discarded),
		Discarded:        append(make([]DiscardedEdge, 0, len(build.Discarded)), build.Discarded...),
		ExternalTargets:  ClassifyExternalTargets(build.Discarded),
		FileErrors:       make([]ReportFileError, 0, len(build.FileErrors)),
		IncompleteBuild:  build.Incomplete,
		CollapsedSymbols: build.Stats.NodesCollapsed,
	}
	if r.Diagnostics.ExternalTargets == nil {
		r.Diagnostics.ExternalTargets = make([]ExternalTarget, 0)
	}
	for _, fe := range build.FileErrors {
		r.Diagnostics.FileErrors = append(r.Diagnostics.FileErrors, ReportFileError{File: fe.FilePath, Error: fe.Err.Error()})
	}

	r.Summary.FilesScanned = build.Stats.FilesProcessed
	r.Summary.FilesFailed = build.Stats.FilesFailed
	r.Summary.Symbols = build.Stats.SymbolsSeen
	r.Summary.Nodes = g.NodeCount()
	r.Summary.Edges = g.EdgeCount()
	r.Summary.InheritanceEdges = inheritance
	r.Summary.UsageEdges = usage
	r.Summary.SelfLoops = selfLoops
	r.Summary.Cycles = len(r.Cycles.Items)
	r.Summary.LongestCycle = longest
	r.Summary.KindCounts = kinds
	r.Summary.MultiDeclFiles = multiDeclarationFiles(build.FileDeclarations)
	r.Summary.BuildMicros = build.Stats.DurationMicro

	return r
}

// multiDeclarationFiles returns files declaring more than one type, most
// declarations first.
func multiDeclarationFiles(counts map[string]int) []FileDeclarationCount {
	out := make([]FileDeclarationCount, 0)
	for file, n := range counts {
		if n > 1 {
			out = append(out, FileDeclarationCount{File: file, Declarations: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Declarations != out[j].Declarations {
			return out[i].Declarations > out[j].Declarations
		}
		return out[i].File < out[j].File
	})
	return out
}

// CycleList returns the report's cycles as Cycle values.
func (r *Report) CycleList() []Cycle {
	out := make([]Cycle, len(r.Cycles.Items))
	for i, items := range r.Cycles.Items {
		out[i] = Cycle(items)
	}
	return out
}

// FromReport reconstructs a frozen Graph from a report.
//
// Description:
//
//	Replays nodes and edges through AddNode and AddEdge so the rebuilt
//	graph has the same indexes as one produced by Builder.Build.
//
// Inputs:
//
//	r - The report. Must not be nil.
//
// Outputs:
//
//	*Graph - The reconstructed graph in read-only state.
//	error - Non-nil on schema mismatch or inconsistent data.
func FromReport(r *Report, opts ...GraphOption) (*Graph, error) {
	if r == nil {
		return nil, ErrNilReport
	}
	if r.SchemaVersion != ReportSchemaVersion {
		return nil, fmt.Errorf("%w: %q (expected %q)", ErrUnsupportedSchema, r.SchemaVersion, ReportSchemaVersion)
	}

	g := NewGraph(r.ProjectRoot, opts...)
	for _, n := range r.Nodes {
		if _, err := g.AddNode(extract.Symbol{Name: n.Name, Kind: n.Kind, File: n.File, Line: n.Line}); err != nil {
			return nil, fmt.Errorf("restore node %s: %w", n.Name, err)
		}
	}
	for _, e := range r.Edges {
		if _, err := g.AddEdge(e.Source, e.Target, e.Kind); err != nil {
			return nil, fmt.Errorf("restore edge %s->%s: %w", e.Source, e.Target, err)
		}
	}
	g.Freeze()
	g.BuiltAtMilli = r.GeneratedAtMilli
	return g, nil
}
