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
	"sort"
	"strings"
	"time"
)

// Default detection bounds.
const (
	// DefaultMaxCycles is the default cap on returned cycles.
	DefaultMaxCycles = 1000

	// DefaultCycleTimeout is the default wall-clock budget for detection.
	DefaultCycleTimeout = 10 * time.Second

	// budgetCheckInterval is how many search steps run between deadline
	// and context checks.
	budgetCheckInterval = 1024
)

// TruncationReason names why detection stopped early.
type TruncationReason string

const (
	TruncationNone      TruncationReason = ""
	TruncationMaxCycles TruncationReason = "max_cycles"
	TruncationTimeout   TruncationReason = "timeout"
	TruncationCancelled TruncationReason = "cancelled"
)

// DetectorOptions bounds cycle enumeration.
type DetectorOptions struct {
	// MaxCycles caps the number of cycles returned. Zero or negative means
	// DefaultMaxCycles.
	MaxCycles int

	// Timeout caps the wall-clock time of enumeration. Zero or negative
	// means DefaultCycleTimeout.
	Timeout time.Duration
}

// DefaultDetectorOptions returns the default bounds.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{MaxCycles: DefaultMaxCycles, Timeout: DefaultCycleTimeout}
}

func (o DetectorOptions) normalized() DetectorOptions {
	if o.MaxCycles <= 0 {
		o.MaxCycles = DefaultMaxCycles
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultCycleTimeout
	}
	return o
}

// Cycle is an elementary circuit. The first element is the
// lexicographically smallest name in the cycle, and the closing edge from
// the last element back to the first is implied.
type Cycle []string

// Key returns a stable identity for the cycle.
func (c Cycle) Key() string {
	return strings.Join(c, "\x00")
}

// CycleResult is the outcome of DetectCycles.
type CycleResult struct {
	// Cycles are sorted by length, then lexicographically.
	Cycles []Cycle

	// Truncated is true if enumeration stopped before exhausting the graph.
	Truncated bool

	// Reason says why enumeration stopped early.
	Reason TruncationReason

	// CountFound is len(Cycles).
	CountFound int

	// DurationMicro is the enumeration time in microseconds.
	DurationMicro int64
}

// DetectCycles enumerates the elementary circuits of g.
//
// Description:
//
//	Runs Johnson's algorithm over each strongly connected component.
//	Self-loops are reported as single-element cycles. Each circuit is
//	reported once, rotated to start at its smallest name. Several edges
//	between the same pair do not multiply cycles.
//
//	The number of circuits can be exponential in the graph size, so
//	enumeration stops when MaxCycles is exceeded, when Timeout elapses or
//	when ctx is cancelled. The cycles found so far are returned with
//	Truncated set.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	g - The graph to analyse. Must not be nil.
//	opts - Detection bounds.
//
// Outputs:
//
//	*CycleResult - The cycles found.
//	error - ErrNilGraph if g is nil.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func DetectCycles(ctx context.Context, g *Graph, opts DetectorOptions) (*CycleResult, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	opts = opts.normalized()

	ctx, span := startDetectSpan(ctx, g, opts)
	defer span.End()

	start := time.Now()
	d := newDetector(ctx, g, opts, start)
	d.run()

	sortCycles(d.found)
	res := &CycleResult{
		Cycles:        d.found,
		Truncated:     d.reason != TruncationNone,
		Reason:        d.reason,
		CountFound:    len(d.found),
		DurationMicro: time.Since(start).Microseconds(),
	}

	setDetectSpanResult(span, res)
	recordDetectMetrics(ctx, time.Since(start), res.CountFound, res.Reason)
	return res, nil
}

// detector holds the state of one enumeration.
type detector struct {
	ctx      context.Context
	deadline time.Time
	max      int

	names    []string
	adj      [][]int
	selfLoop []bool

	found  []Cycle
	seen   map[string]struct{}
	steps  int
	reason TruncationReason
}

func newDetector(ctx context.Context, g *Graph, opts DetectorOptions, start time.Time) *detector {
	names := g.Names()
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	adj := make([][]int, len(names))
	selfLoop := make([]bool, len(names))
	for i, name := range names {
		for _, succ := range g.Successors(name) {
			j := index[succ]
			if j == i {
				selfLoop[i] = true
				continue
			}
			adj[i] = append(adj[i], j)
		}
		sort.Ints(adj[i])
	}

	return &detector{
		ctx:      ctx,
		deadline: start.Add(opts.Timeout),
		max:      opts.MaxCycles,
		names:    names,
		adj:      adj,
		selfLoop: selfLoop,
		seen:     make(map[string]struct{}),
	}
}

// run enumerates self-loops and then the circuits of every component.
func (d *detector) run() {
	for v, loop := range d.selfLoop {
		if loop && !d.emit([]int{v}) {
			return
		}
	}

	all := make([]int, len(d.names))
	for i := range all {
		all[i] = i
	}
	queue := stronglyConnected(d.adj, all, func(int) bool { return true })

	inComponent := make([]bool, len(d.names))
	for len(queue) > 0 {
		if d.exhausted() {
			return
		}
		scc := queue[0]
		queue = queue[1:]

		for _, v := range scc {
			inComponent[v] = true
		}
		ok := d.circuits(scc[0], inComponent)
		for _, v := range scc {
			inComponent[v] = false
		}
		if !ok {
			return
		}

		// Drop the start node and split what remains.
		rest := scc[1:]
		for _, v := range rest {
			inComponent[v] = true
		}
		subs := stronglyConnected(d.adj, rest, func(w int) bool { return inComponent[w] })
		for _, v := range rest {
			inComponent[v] = false
		}
		queue = append(queue, subs...)
	}
}

// circuits finds every circuit through start inside the component marked
// by member. It returns false if enumeration must stop.
func (d *detector) circuits(start int, member []bool) bool {
	type frame struct {
		node int
		nbrs []int
		next int
	}

	neighbours := func(v int) []int {
		out := make([]int, 0, len(d.adj[v]))
		for _, w := range d.adj[v] {
			if member[w] {
				out = append(out, w)
			}
		}
		return out
	}

	blocked := map[int]bool{start: true}
	blockedBy := make(map[int]map[int]struct{})
	closed := make(map[int]bool)
	path := []int{start}
	stack := []frame{{node: start, nbrs: neighbours(start)}}

	unblock := func(v int) {
		pending := []int{v}
		for len(pending) > 0 {
			u := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if !blocked[u] {
				continue
			}
			blocked[u] = false
			for w := range blockedBy[u] {
				pending = append(pending, w)
			}
			delete(blockedBy, u)
		}
	}

	for len(stack) > 0 {
		if d.tick() {
			return false
		}

		top := len(stack) - 1
		f := &stack[top]
		if f.next < len(f.nbrs) {
			w := f.nbrs[f.next]
			f.next++
			if w == start {
				if !d.emit(path) {
					return false
				}
				for _, v := range path {
					closed[v] = true
				}
			} else if !blocked[w] {
				path = append(path, w)
				delete(closed, w)
				blocked[w] = true
				stack = append(stack, frame{node: w, nbrs: neighbours(w)})
			}
			continue
		}

		v := f.node
		if closed[v] {
			unblock(v)
		} else {
			for _, w := range f.nbrs {
				if blockedBy[w] == nil {
					blockedBy[w] = make(map[int]struct{})
				}
				blockedBy[w][v] = struct{}{}
			}
		}
		stack = stack[:top]
		path = path[:len(path)-1]
		if len(stack) > 0 && closed[v] {
			closed[stack[len(stack)-1].node] = true
		}
	}
	return true
}

// emit records a circuit. It returns false when the cap is exceeded.
func (d *detector) emit(path []int) bool {
	cycle := make(Cycle, len(path))
	for i, v := range path {
		cycle[i] = d.names[v]
	}
	key := cycle.Key()
	if _, dup := d.seen[key]; dup {
		return true
	}
	if len(d.found) >= d.max {
		d.reason = TruncationMaxCycles
		return false
	}
	d.seen[key] = struct{}{}
	d.found = append(d.found, cycle)
	return true
}

// tick counts a search step and reports whether the budget is spent.
func (d *detector) tick() bool {
	d.steps++
	if d.steps%budgetCheckInterval != 0 {
		return false
	}
	return d.exhausted()
}

func (d *detector) exhausted() bool {
	if d.reason != TruncationNone {
		return true
	}
	if d.ctx.Err() != nil {
		d.reason = TruncationCancelled
		return true
	}
	if !time.Now().Before(d.deadline) {
		d.reason = TruncationTimeout
		return true
	}
	return false
}

// sortCycles orders cycles by length, then element-wise by name.
func sortCycles(cycles []Cycle) {
	sort.SliceStable(cycles, func(i, j int) bool {
		a, b := cycles[i], cycles[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
