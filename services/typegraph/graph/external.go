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
	"sort"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
)

// DiscardedEdge is an extracted dependency whose target is not declared in
// the analysed sources. Typically the target lives in an SDK or package
// outside the project.
type DiscardedEdge struct {
	Source     string           `json:"source"`
	SourceFile string           `json:"source_file"`
	SourceLine int              `json:"source_line"`
	Target     string           `json:"target"`
	Kind       extract.EdgeKind `json:"kind"`
}

// ExternalTarget groups discarded edges by the missing type they point at.
//
// Thread Safety: This type is safe for concurrent use (immutable after creation).
type ExternalTarget struct {
	// Name is the undeclared type name.
	Name string `json:"name"`

	// References is the number of discarded edges pointing at Name.
	References int `json:"references"`

	// ReferencedBy lists the distinct source types, sorted.
	ReferencedBy []string `json:"referenced_by"`

	// Inherited is true if any reference is an inheritance edge.
	Inherited bool `json:"inherited"`
}

// ClassifyExternalTargets summarises discarded edges per missing type.
//
// Description:
//
//	Large projects discard thousands of edges to framework types. Grouping
//	them shows which external types the project leans on most.
//
// Inputs:
//   - discarded: Edges recorded by Builder.Build.
//
// Outputs:
//   - []ExternalTarget: Ordered by References descending, then Name.
//     Returns nil if discarded is empty.
//
// Thread Safety: Safe for concurrent use (reads only).
func ClassifyExternalTargets(discarded []DiscardedEdge) []ExternalTarget {
	if len(discarded) == 0 {
		return nil
	}

	byName := make(map[string]*ExternalTarget)
	sources := make(map[string]map[string]struct{})
	for _, d := range discarded {
		t, ok := byName[d.Target]
		if !ok {
			t = &ExternalTarget{Name: d.Target}
			byName[d.Target] = t
			sources[d.Target] = make(map[string]struct{})
		}
		t.References++
		if d.Kind == extract.EdgeKindInheritance {
			t.Inherited = true
		}
		sources[d.Target][d.Source] = struct{}{}
	}

	out := make([]ExternalTarget, 0, len(byName))
	for name, t := range byName {
		for src := range sources[name] {
			t.ReferencedBy = append(t.ReferencedBy, src)
		}
		sort.Strings(t.ReferencedBy)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].References != out[j].References {
			return out[i].References > out[j].References
		}
		return out[i].Name < out[j].Name
	})
	return out
}
