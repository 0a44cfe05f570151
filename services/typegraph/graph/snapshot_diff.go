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
)

// Node change classifications.
const (
	ChangeKind  = "kind_changed"
	ChangeMoved = "moved"
	ChangeEdges = "edges_changed"
)

// SnapshotDiff describes how the dependency structure changed between two
// reports.
type SnapshotDiff struct {
	BaseSnapshotID   string `json:"base_snapshot_id"`
	TargetSnapshotID string `json:"target_snapshot_id"`

	// NodesAdded are names present in target but not in base.
	NodesAdded []string `json:"nodes_added"`

	// NodesRemoved are names present in base but not in target.
	NodesRemoved []string `json:"nodes_removed"`

	// NodesModified are nodes present in both whose declaration or
	// connectivity changed.
	NodesModified []NodeDiff `json:"nodes_modified"`

	EdgesAdded   []ReportEdge `json:"edges_added"`
	EdgesRemoved []ReportEdge `json:"edges_removed"`

	// CyclesIntroduced are cycles in target but not in base.
	CyclesIntroduced [][]string `json:"cycles_introduced"`

	// CyclesResolved are cycles in base but not in target.
	CyclesResolved [][]string `json:"cycles_resolved"`

	Summary DiffSummary `json:"summary"`
}

// NodeDiff is one modified node.
type NodeDiff struct {
	Name string `json:"name"`

	// ChangeType is ChangeKind, ChangeMoved or ChangeEdges.
	ChangeType string `json:"change_type"`
}

// DiffSummary contains aggregate statistics about a diff.
type DiffSummary struct {
	// TotalChanges counts node and edge changes.
	TotalChanges int `json:"total_changes"`

	// FilesAffected is the number of distinct files with changed nodes.
	FilesAffected int `json:"files_affected"`

	// ChangeRatio is the fraction of nodes that changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`

	// CycleDelta is the target cycle count minus the base cycle count.
	CycleDelta int `json:"cycle_delta"`

	// Comparable is false if either report's cycle list was truncated, in
	// which case cycle changes may be incomplete.
	Comparable bool `json:"comparable"`
}

// DiffSnapshots compares two reports.
//
// Description:
//
//	Rebuilds both graphs with FromReport and compares nodes by name, edges
//	by (source, target, kind) and cycles by their canonical form.
//
// Inputs:
//
//	base - The older report. Must not be nil.
//	target - The newer report. Must not be nil.
//	baseSnapshotID, targetSnapshotID - Recorded on the result.
//
// Outputs:
//
//	*SnapshotDiff - The differences, with every list sorted.
//	error - Non-nil if either report cannot be rebuilt.
func DiffSnapshots(base, target *Report, baseSnapshotID, targetSnapshotID string) (*SnapshotDiff, error) {
	if base == nil || target == nil {
		return nil, ErrNilReport
	}
	bg, err := FromReport(base)
	if err != nil {
		return nil, fmt.Errorf("rebuilding base: %w", err)
	}
	tg, err := FromReport(target)
	if err != nil {
		return nil, fmt.Errorf("rebuilding target: %w", err)
	}

	diff := &SnapshotDiff{
		BaseSnapshotID:   baseSnapshotID,
		TargetSnapshotID: targetSnapshotID,
		NodesAdded:       []string{},
		NodesRemoved:     []string{},
		NodesModified:    []NodeDiff{},
		EdgesAdded:       []ReportEdge{},
		EdgesRemoved:     []ReportEdge{},
		CyclesIntroduced: [][]string{},
		CyclesResolved:   [][]string{},
	}

	affectedFiles := make(map[string]bool)

	for name, tNode := range tg.nodes {
		bNode, exists := bg.nodes[name]
		if !exists {
			diff.NodesAdded = append(diff.NodesAdded, name)
			affectedFiles[tNode.File] = true
			continue
		}
		if change := classifyChange(bNode, tNode); change != "" {
			diff.NodesModified = append(diff.NodesModified, NodeDiff{Name: name, ChangeType: change})
			affectedFiles[tNode.File] = true
			affectedFiles[bNode.File] = true
		}
	}
	for name, bNode := range bg.nodes {
		if _, exists := tg.nodes[name]; !exists {
			diff.NodesRemoved = append(diff.NodesRemoved, name)
			affectedFiles[bNode.File] = true
		}
	}

	sort.Strings(diff.NodesAdded)
	sort.Strings(diff.NodesRemoved)
	sort.Slice(diff.NodesModified, func(i, j int) bool {
		return diff.NodesModified[i].Name < diff.NodesModified[j].Name
	})

	for key := range tg.edgeSet {
		if _, exists := bg.edgeSet[key]; !exists {
			diff.EdgesAdded = append(diff.EdgesAdded, ReportEdge{Source: key.source, Target: key.target, Kind: key.kind})
		}
	}
	for key := range bg.edgeSet {
		if _, exists := tg.edgeSet[key]; !exists {
			diff.EdgesRemoved = append(diff.EdgesRemoved, ReportEdge{Source: key.source, Target: key.target, Kind: key.kind})
		}
	}
	sortReportEdges(diff.EdgesAdded)
	sortReportEdges(diff.EdgesRemoved)

	diff.CyclesIntroduced = cycleDifference(target.CycleList(), base.CycleList())
	diff.CyclesResolved = cycleDifference(base.CycleList(), target.CycleList())

	totalNodes := len(bg.nodes)
	if len(tg.nodes) > totalNodes {
		totalNodes = len(tg.nodes)
	}
	changedNodes := len(diff.NodesAdded) + len(diff.NodesRemoved) + len(diff.NodesModified)
	changeRatio := 0.0
	if totalNodes > 0 {
		changeRatio = float64(changedNodes) / float64(totalNodes)
	}

	diff.Summary = DiffSummary{
		TotalChanges:  changedNodes + len(diff.EdgesAdded) + len(diff.EdgesRemoved),
		FilesAffected: len(affectedFiles),
		ChangeRatio:   changeRatio,
		CycleDelta:    len(target.Cycles.Items) - len(base.Cycles.Items),
		Comparable:    !base.Cycles.Truncated && !target.Cycles.Truncated,
	}
	return diff, nil
}

// classifyChange returns the change type, or "" if the node is unchanged.
func classifyChange(base, target *Node) string {
	switch {
	case base.Kind != target.Kind:
		return ChangeKind
	case base.File != target.File || base.Line != target.Line:
		return ChangeMoved
	case !sameEdges(base.Outgoing, target.Outgoing) || !sameEdges(base.Incoming, target.Incoming):
		return ChangeEdges
	default:
		return ""
	}
}

// sameEdges compares two adjacency lists sorted by Freeze.
func sameEdges(a, b []*Edge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if *a[i] != *b[i] {
			return false
		}
	}
	return true
}

// cycleDifference returns the cycles in a that are not in b, sorted.
func cycleDifference(a, b []Cycle) [][]string {
	inB := make(map[string]struct{}, len(b))
	for _, c := range b {
		inB[c.Key()] = struct{}{}
	}
	out := make([]Cycle, 0)
	for _, c := range a {
		if _, ok := inB[c.Key()]; !ok {
			out = append(out, c)
		}
	}
	sortCycles(out)

	items := make([][]string, len(out))
	for i, c := range out {
		items[i] = c
	}
	return items
}

func sortReportEdges(edges []ReportEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})
}
