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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

// Default graph capacity limits.
const (
	// DefaultMaxNodes is the default node capacity.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default edge capacity.
	DefaultMaxEdges = 5_000_000
)

// Node is a graph vertex for all declarations sharing one name.
type Node struct {
	// Name is the type name and the node key.
	Name string

	// Kind, File and Line come from the last declaration merged.
	Kind extract.Kind
	File string
	Line int

	// Declarations counts the symbols merged into this node.
	Declarations int

	// Outgoing edges, sorted by target then kind after Freeze.
	Outgoing []*Edge

	// Incoming edges, sorted by source then kind after Freeze.
	Incoming []*Edge
}

// Edge is a resolved dependency between two nodes.
type Edge struct {
	Source string
	Target string
	Kind   extract.EdgeKind
}

// String renders the edge as "A -[usage]-> B".
func (e *Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Kind, e.Target)
}

type edgeKey struct {
	source string
	target string
	kind   extract.EdgeKind
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithMaxNodes sets the node capacity.
func WithMaxNodes(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxNodes = n
		}
	}
}

// WithMaxEdges sets the edge capacity.
func WithMaxEdges(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxEdges = n
		}
	}
}

// Graph is a directed multigraph of type names.
//
// Thread Safety:
//
//	Not safe for concurrent use while building. After Freeze the graph is
//	read-only and safe for concurrent reads.
type Graph struct {
	// ProjectRoot is the directory the graph was built from.
	ProjectRoot string

	// BuiltAtMilli is set by Freeze (Unix milliseconds).
	BuiltAtMilli int64

	nodes    map[string]*Node
	edges    []*Edge
	edgeSet  map[edgeKey]struct{}
	frozen   bool
	maxNodes int
	maxEdges int
}

// NewGraph creates an empty graph in building state.
func NewGraph(projectRoot string, opts ...GraphOption) *Graph {
	g := &Graph{
		ProjectRoot: projectRoot,
		nodes:       make(map[string]*Node),
		edgeSet:     make(map[edgeKey]struct{}),
		maxNodes:    DefaultMaxNodes,
		maxEdges:    DefaultMaxEdges,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode merges a symbol into the graph.
//
// Description:
//
//	Creates the node for sym.Name, or overwrites the existing node's kind,
//	file and line when the name is already present (last write wins).
//	Edges already attached to the node are kept.
//
// Inputs:
//
//	sym - The declaration. Name must be non-empty and Kind valid.
//
// Outputs:
//
//	bool - True if an existing node was overwritten.
//	error - ErrGraphFrozen, ErrInvalidNode or ErrMaxNodesExceeded.
func (g *Graph) AddNode(sym extract.Symbol) (bool, error) {
	if g.frozen {
		return false, ErrGraphFrozen
	}
	if sym.Name == "" || !sym.Kind.Valid() {
		return false, fmt.Errorf("%w: name=%q kind=%s", ErrInvalidNode, sym.Name, sym.Kind)
	}

	if node, ok := g.nodes[sym.Name]; ok {
		node.Kind = sym.Kind
		node.File = sym.File
		node.Line = sym.Line
		node.Declarations++
		return true, nil
	}

	if len(g.nodes) >= g.maxNodes {
		return false, ErrMaxNodesExceeded
	}
	g.nodes[sym.Name] = &Node{
		Name:         sym.Name,
		Kind:         sym.Kind,
		File:         sym.File,
		Line:         sym.Line,
		Declarations: 1,
	}
	return false, nil
}

// AddEdge adds a typed edge between two existing nodes.
//
// Outputs:
//
//	bool - False if the identical edge already exists.
//	error - ErrGraphFrozen, ErrNodeNotFound or ErrMaxEdgesExceeded.
func (g *Graph) AddEdge(source, target string, kind extract.EdgeKind) (bool, error) {
	if g.frozen {
		return false, ErrGraphFrozen
	}
	from, ok := g.nodes[source]
	if !ok {
		return false, fmt.Errorf("%w: source %q", ErrNodeNotFound, source)
	}
	to, ok := g.nodes[target]
	if !ok {
		return false, fmt.Errorf("%w: target %q", ErrNodeNotFound, target)
	}

	key := edgeKey{source: source, target: target, kind: kind}
	if _, dup := g.edgeSet[key]; dup {
		return false, nil
	}
	if len(g.edges) >= g.maxEdges {
		return false, ErrMaxEdgesExceeded
	}

	edge := &Edge{Source: source, Target: target, Kind: kind}
	g.edgeSet[key] = struct{}{}
	g.edges = append(g.edges, edge)
	from.Outgoing = append(from.Outgoing, edge)
	to.Incoming = append(to.Incoming, edge)
	return true, nil
}

// Freeze makes the graph read-only and sorts adjacency lists.
// Calling Freeze more than once has no effect.
func (g *Graph) Freeze() {
	if g.frozen {
		return
	}
	for _, node := range g.nodes {
		sortEdges(node.Outgoing)
		sortEdges(node.Incoming)
	}
	sortEdges(g.edges)
	g.frozen = true
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// IsFrozen reports whether Freeze has been called.
func (g *Graph) IsFrozen() bool {
	return g.frozen
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// GetNode returns the node named name.
func (g *Graph) GetNode(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// HasNode reports whether a node named name exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Nodes returns all nodes sorted by name.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// Names returns all node names sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns all edges sorted by source, target and kind.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, len(g.edges))
	copy(edges, g.edges)
	if !g.frozen {
		sortEdges(edges)
	}
	return edges
}

// Successors returns the distinct target names of name's outgoing edges,
// sorted.
func (g *Graph) Successors(name string) []string {
	node, ok := g.nodes[name]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(node.Outgoing))
	out := make([]string, 0, len(node.Outgoing))
	for _, e := range node.Outgoing {
		if _, dup := seen[e.Target]; dup {
			continue
		}
		seen[e.Target] = struct{}{}
		out = append(out, e.Target)
	}
	sort.Strings(out)
	return out
}

// EdgesBetween returns every edge from source to target, sorted by kind.
func (g *Graph) EdgesBetween(source, target string) []*Edge {
	node, ok := g.nodes[source]
	if !ok {
		return nil
	}
	var out []*Edge
	for _, e := range node.Outgoing {
		if e.Target == target {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Hash returns a deterministic SHA256 of the graph's nodes and edges.
func (g *Graph) Hash() string {
	h := sha256.New()
	for _, node := range g.Nodes() {
		fmt.Fprintf(h, "n|%s|%s|%s|%d\n", node.Name, node.Kind, node.File, node.Line)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(h, "e|%s|%s|%s\n", e.Source, e.Target, e.Kind)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// sortEdges orders edges by source, target and kind.
func sortEdges(edges []*Edge) {
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
