// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// DefaultSummaryCycles is how many cycles the summary lists.
const DefaultSummaryCycles = 10

// SummaryOptions configures WriteSummary.
type SummaryOptions struct {
	// Color enables ANSI styling.
	Color bool

	// MaxCycles caps the listed cycles. Zero uses DefaultSummaryCycles;
	// negative lists none.
	MaxCycles int

	// MaxExternal caps the listed external types. Zero lists five.
	MaxExternal int
}

// ColorEnabled reports whether f is an interactive terminal and NO_COLOR
// is unset.
func ColorEnabled(f *os.File) bool {
	if f == nil || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type summaryStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	warn    lipgloss.Style
	ok      lipgloss.Style
	muted   lipgloss.Style
	inherit lipgloss.Style
}

func newSummaryStyles(color bool) summaryStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return summaryStyles{plain, plain, plain, plain, plain, plain, plain}
	}
	return summaryStyles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		value:   lipgloss.NewStyle().Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		inherit: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// WriteSummary renders a human-readable overview of r.
//
// Description:
//
//	Shows counts, the type-kind distribution, files declaring several
//	types, the first cycles with their suggestions, and the external types
//	referenced most often.
func WriteSummary(w io.Writer, r *graph.Report, opts SummaryOptions) error {
	if r == nil {
		return ErrNilReport
	}
	st := newSummaryStyles(opts.Color)
	maxCycles := opts.MaxCycles
	if maxCycles == 0 {
		maxCycles = DefaultSummaryCycles
	}
	maxExternal := opts.MaxExternal
	if maxExternal <= 0 {
		maxExternal = 5
	}

	var b strings.Builder
	s := r.Summary
	row := func(label string, value any) {
		fmt.Fprintf(&b, "  %s %s\n", st.label.Render(fmt.Sprintf("%-18s", label)), st.value.Render(fmt.Sprint(value)))
	}

	b.WriteString(st.title.Render("Type dependency graph") + "\n")
	row("project", r.ProjectRoot)
	row("files", fmt.Sprintf("%d (%d failed)", s.FilesScanned, s.FilesFailed))
	row("types", s.Nodes)
	row("edges", fmt.Sprintf("%d (%d inheritance, %d usage)", s.Edges, s.InheritanceEdges, s.UsageEdges))
	row("discarded edges", r.Diagnostics.DiscardedEdges)
	if r.Diagnostics.CollapsedSymbols > 0 {
		row("duplicate names", r.Diagnostics.CollapsedSymbols)
	}

	kinds := make([]string, 0, len(extract.Kinds))
	for _, k := range extract.Kinds {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, s.KindCounts[k.String()]))
	}
	row("kinds", strings.Join(kinds, " "))

	if len(s.MultiDeclFiles) > 0 {
		row("multi-type files", len(s.MultiDeclFiles))
		for i, f := range s.MultiDeclFiles {
			if i == 3 {
				b.WriteString(st.muted.Render(fmt.Sprintf("    ... %d more", len(s.MultiDeclFiles)-3)) + "\n")
				break
			}
			b.WriteString(st.muted.Render(fmt.Sprintf("    %s (%d)", f.File, f.Declarations)) + "\n")
		}
	}

	b.WriteString("\n")
	cycles := r.Cycles
	switch {
	case len(cycles.Items) == 0 && !cycles.Truncated:
		b.WriteString(st.ok.Render("No cycles found.") + "\n")
	default:
		header := fmt.Sprintf("%d cycles", len(cycles.Items))
		if cycles.Truncated {
			header += fmt.Sprintf(" (truncated: %s, %d found)", cycles.TruncationReason, cycles.CycleCountFound)
		}
		b.WriteString(st.warn.Render(header) + "\n")
		for i, c := range cycles.Items {
			if maxCycles < 0 || i >= maxCycles {
				b.WriteString(st.muted.Render(fmt.Sprintf("  ... %d more", len(cycles.Items)-i)) + "\n")
				break
			}
			closed := append(append([]string(nil), c...), c[0])
			fmt.Fprintf(&b, "  %d. %s\n", i+1, strings.Join(closed, " -> "))
			for _, msg := range cycleAdvice(r, c) {
				style := st.muted
				if strings.HasSuffix(msg, graph.AdviceInheritance) {
					style = st.inherit
				}
				b.WriteString("       " + style.Render(msg) + "\n")
			}
		}
	}

	ext := r.Diagnostics.ExternalTargets
	if len(ext) > 0 {
		b.WriteString("\n" + st.title.Render("Most referenced external types") + "\n")
		for i, t := range ext {
			if i >= maxExternal {
				break
			}
			fmt.Fprintf(&b, "  %-24s %s\n", t.Name, st.muted.Render(fmt.Sprintf("%d refs", t.References)))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cycleAdvice returns the suggestions attached to a cycle's edges, in
// cycle order: "u: To v: ...".
func cycleAdvice(r *graph.Report, c []string) []string {
	var out []string
	for i, u := range c {
		v := c[(i+1)%len(c)]
		prefix := "To " + v + ":"
		msgs := append([]string(nil), r.Suggestions[u]...)
		sort.Strings(msgs)
		seen := map[string]bool{}
		for _, m := range msgs {
			if strings.HasPrefix(m, prefix) && !seen[m] {
				seen[m] = true
				out = append(out, u+": "+m)
			}
		}
	}
	return out
}
