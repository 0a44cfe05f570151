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
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

// makeSymbol creates a struct declaration at line 1 of name.swift.
func makeSymbol(name string) extract.Symbol {
	return extract.Symbol{Name: name, Kind: extract.KindStruct, File: name + ".swift", Line: 1}
}

// makeEdge creates an extracted edge from source to target.
func makeEdge(source, target string, kind extract.EdgeKind) extract.Edge {
	return extract.Edge{Source: makeSymbol(source), Target: target, Kind: kind}
}

// buildTestGraph creates a frozen graph from "A->B" usage specs. Every
// name mentioned becomes a node; extra names add isolated nodes.
func buildTestGraph(t *testing.T, edges []string, extra ...string) *Graph {
	t.Helper()
	g := NewGraph("/test/project")

	add := func(name string) {
		if !g.HasNode(name) {
			if _, err := g.AddNode(makeSymbol(name)); err != nil {
				t.Fatalf("AddNode(%s): %v", name, err)
			}
		}
	}

	for _, name := range extra {
		add(name)
	}
	for _, spec := range edges {
		parts := strings.SplitN(spec, "->", 2)
		if len(parts) != 2 {
			t.Fatalf("bad edge spec %q", spec)
		}
		add(parts[0])
		add(parts[1])
		if _, err := g.AddEdge(parts[0], parts[1], extract.EdgeKindUsage); err != nil {
			t.Fatalf("AddEdge(%s): %v", spec, err)
		}
	}
	g.Freeze()
	return g
}

// completeGraph returns a frozen graph where every node uses every other.
func completeGraph(t *testing.T, n int) *Graph {
	t.Helper()
	var edges []string
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				edges = append(edges, fmt.Sprintf("N%02d->N%02d", i, j))
			}
		}
	}
	return buildTestGraph(t, edges)
}

// detect runs DetectCycles with default bounds and fails on error.
func detect(t *testing.T, g *Graph) *CycleResult {
	t.Helper()
	res, err := DetectCycles(context.Background(), g, DefaultDetectorOptions())
	if err != nil {
		t.Fatalf("DetectCycles: %v", err)
	}
	return res
}

// cycleStrings renders cycles as "A,B,C" for comparison.
func cycleStrings(cycles []Cycle) []string {
	out := make([]string, len(cycles))
	for i, c := range cycles {
		out[i] = strings.Join(c, ",")
	}
	return out
}
