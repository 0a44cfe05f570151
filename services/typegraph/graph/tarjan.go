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

import "sort"

// stronglyConnected returns the strongly connected components of the
// subgraph induced by nodes, keeping only components with more than one
// member. Each component is sorted ascending. Components are ordered by
// their smallest member.
//
// adj holds sorted successor indices without self-loops. member reports
// whether an index belongs to the induced subgraph.
//
// Implementation uses an explicit call stack to avoid stack overflow on
// deep graphs.
func stronglyConnected(adj [][]int, nodes []int, member func(int) bool) [][]int {
	index := 0
	nodeIndex := make(map[int]int, len(nodes))
	nodeLowLink := make(map[int]int, len(nodes))
	onStack := make(map[int]bool, len(nodes))
	sccStack := make([]int, 0, len(nodes))
	sccs := make([][]int, 0)

	type callFrame struct {
		node      int
		edgeIndex int
		phase     int // 0=init, 1=process edges, 2=post-child, 3=finalize
		child     int
	}

	strongConnect := func(start int) {
		callStack := []callFrame{{node: start}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				nodeIndex[frame.node] = index
				nodeLowLink[frame.node] = index
				index++
				sccStack = append(sccStack, frame.node)
				onStack[frame.node] = true
				frame.phase = 1

			case 1:
				succ := adj[frame.node]
				pushed := false
				for frame.edgeIndex < len(succ) {
					w := succ[frame.edgeIndex]
					frame.edgeIndex++
					if !member(w) {
						continue
					}
					if _, visited := nodeIndex[w]; !visited {
						frame.phase = 2
						frame.child = w
						callStack = append(callStack, callFrame{node: w})
						pushed = true
						break
					} else if onStack[w] && nodeIndex[w] < nodeLowLink[frame.node] {
						nodeLowLink[frame.node] = nodeIndex[w]
					}
				}
				if !pushed {
					frame.phase = 3
				}

			case 2:
				if nodeLowLink[frame.child] < nodeLowLink[frame.node] {
					nodeLowLink[frame.node] = nodeLowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if nodeLowLink[frame.node] == nodeIndex[frame.node] {
					scc := make([]int, 0)
					for {
						w := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack[w] = false
						scc = append(scc, w)
						if w == frame.node {
							break
						}
					}
					if len(scc) > 1 {
						sort.Ints(scc)
						sccs = append(sccs, scc)
					}
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	for _, v := range nodes {
		if _, visited := nodeIndex[v]; !visited {
			strongConnect(v)
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}
