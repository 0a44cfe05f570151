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
	"reflect"
	"testing"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

func TestSuggest_MutualUsage(t *testing.T) {
	g := buildTestGraph(t, []string{"A->B", "B->A"})
	got := Suggest(g, detect(t, g).Cycles)

	want := Suggestions{
		"A": {"To B: " + AdviceUsage},
		"B": {"To A: " + AdviceUsage},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("suggestions = %v\nwant %v", got, want)
	}
}

func TestSuggest_SelfLoop(t *testing.T) {
	g := buildTestGraph(t, []string{"A->A"})
	got := Suggest(g, detect(t, g).Cycles)
	if want := []string{"To A: " + AdviceUsage}; !reflect.DeepEqual(got["A"], want) {
		t.Errorf("A = %v, want %v", got["A"], want)
	}
}

func TestSuggest_OneMessagePerEdgeKind(t *testing.T) {
	g := NewGraph("/p")
	g.AddNode(makeSymbol("A"))
	g.AddNode(makeSymbol("B"))
	g.AddEdge("A", "B", extract.EdgeKindUsage)
	g.AddEdge("A", "B", extract.EdgeKindInheritance)
	g.AddEdge("B", "A", extract.EdgeKindUsage)
	g.Freeze()

	got := Suggest(g, []Cycle{{"A", "B"}})
	want := []string{"To B: " + AdviceInheritance, "To B: " + AdviceUsage}
	if !reflect.DeepEqual(got["A"], want) {
		t.Errorf("A = %v, want %v", got["A"], want)
	}
}

func TestSuggest_AccumulatesAcrossCycles(t *testing.T) {
	g := buildTestGraph(t, []string{"A->B", "B->A", "B->C", "C->A"})
	got := Suggest(g, detect(t, g).Cycles)

	// A->B lies on both cycles, so A gets the same advice twice.
	if len(got["A"]) != 2 || got["A"][0] != got["A"][1] {
		t.Errorf("A = %v", got["A"])
	}
	if len(got["B"]) != 2 {
		t.Errorf("B = %v", got["B"])
	}
	if _, ok := got["D"]; ok {
		t.Error("type off every cycle has suggestions")
	}
}

func TestSuggest_NoCycles(t *testing.T) {
	g := buildTestGraph(t, []string{"A->B"})
	if got := Suggest(g, nil); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if got := Suggest(nil, []Cycle{{"A"}}); got == nil || len(got) != 0 {
		t.Errorf("nil graph: got %v", got)
	}
}

func TestAdvice(t *testing.T) {
	if Advice(extract.EdgeKindUnknown) != AdviceOther {
		t.Errorf("unknown kind advice = %q", Advice(extract.EdgeKindUnknown))
	}
}
