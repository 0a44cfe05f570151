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

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

// Suggestion advice per edge kind.
const (
	AdviceInheritance = "Replace inheritance with composition or protocol"
	AdviceUsage       = "Use protocols instead of concrete types or move to separate module"
	AdviceOther       = "Consider restructuring this dependency"
)

// Suggestions maps a type name to refactoring advice, in the order the
// advice was produced.
type Suggestions map[string][]string

// Suggest produces refactoring advice for every edge on every cycle.
//
// Description:
//
//	For each consecutive pair (u, v) of each cycle, including the closing
//	pair from the last element to the first, one message is appended to
//	u's list per edge from u to v. A single-element cycle yields the pair
//	(u, u). A type on several cycles accumulates messages from all of
//	them; repeats are kept.
//
// Inputs:
//
//	g - The graph the cycles were detected on.
//	cycles - Cycles from DetectCycles.
//
// Outputs:
//
//	Suggestions - Never nil. Types not on any cycle are absent.
func Suggest(g *Graph, cycles []Cycle) Suggestions {
	out := make(Suggestions)
	if g == nil {
		return out
	}
	for _, cycle := range cycles {
		for i, u := range cycle {
			v := cycle[(i+1)%len(cycle)]
			for _, e := range g.EdgesBetween(u, v) {
				out[u] = append(out[u], fmt.Sprintf("To %s: %s", v, Advice(e.Kind)))
			}
		}
	}
	return out
}

// Advice returns the advice text for an edge kind.
func Advice(kind extract.EdgeKind) string {
	switch kind {
	case extract.EdgeKindInheritance:
		return AdviceInheritance
	case extract.EdgeKindUsage:
		return AdviceUsage
	default:
		return AdviceOther
	}
}
