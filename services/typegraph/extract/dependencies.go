// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strings"
)

// declSpan locates the parts of one declaration in masked source.
type declSpan struct {
	// nameEnd is the offset just past the declared name.
	nameEnd int

	// headerEnd is the offset of the opening brace, or the end of the
	// declaration line when there is none.
	headerEnd int

	// bodyStart and bodyEnd bound the text between the braces. Both are -1
	// when the declaration has no body.
	bodyStart int
	bodyEnd   int
}

// Dependencies returns the inheritance and usage edges of symbols.
//
// Description:
//
//	For each symbol the declaration header and body are located in the
//	masked source. The header yields Inheritance edges, typed var/let
//	bindings in the body yield Usage edges. A body whose braces never
//	balance runs to end of file. Self-referential edges are kept.
//
// Inputs:
//
//	src - Raw file contents, the same text the symbols were extracted from.
//	symbols - Symbols declared in src.
//
// Outputs:
//
//	[]Edge - Edges grouped by symbol, in source order within each group.
func (e *Extractor) Dependencies(src []byte, symbols []Symbol) []Edge {
	return e.dependencies(string(maskSource(src)), symbols)
}

func (e *Extractor) dependencies(masked string, symbols []Symbol) []Edge {
	var edges []Edge
	for _, sym := range symbols {
		span, ok := e.locate(masked, sym)
		if !ok {
			continue
		}

		for _, target := range e.inheritance(masked[span.nameEnd:span.headerEnd]) {
			edges = append(edges, Edge{Source: sym, Target: target, Kind: EdgeKindInheritance})
		}

		if span.bodyStart < 0 {
			continue
		}
		for _, target := range e.usages(masked[span.bodyStart:span.bodyEnd]) {
			edges = append(edges, Edge{Source: sym, Target: target, Kind: EdgeKindUsage})
		}
	}
	return edges
}

// locate finds the header and body of sym.
//
// The symbol's own offset is used when it points at "<kind> <name>".
// Otherwise the first textual occurrence of that phrase is used.
func (e *Extractor) locate(masked string, sym Symbol) (declSpan, bool) {
	keyword := sym.Kind.String()
	start := -1
	if sym.Offset >= 0 && declaredAt(masked, sym.Offset, keyword, sym.Name) {
		start = sym.Offset
	} else {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(keyword) + `[ \t]+` + regexp.QuoteMeta(sym.Name) + `\b`)
		if err != nil {
			return declSpan{}, false
		}
		loc := re.FindStringIndex(masked)
		if loc == nil {
			return declSpan{}, false
		}
		start = loc[0]
	}

	i := start + len(keyword)
	for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t') {
		i++
	}
	nameEnd := i + len(sym.Name)

	open := strings.IndexByte(masked[nameEnd:], '{')
	if open < 0 {
		eol := strings.IndexByte(masked[nameEnd:], '\n')
		if eol < 0 {
			eol = len(masked) - nameEnd
		}
		return declSpan{nameEnd: nameEnd, headerEnd: nameEnd + eol, bodyStart: -1, bodyEnd: -1}, true
	}
	open += nameEnd

	return declSpan{
		nameEnd:   nameEnd,
		headerEnd: open,
		bodyStart: open + 1,
		bodyEnd:   matchBrace(masked, open),
	}, true
}

// declaredAt reports whether "<keyword> <name>" starts at offset.
func declaredAt(masked string, offset int, keyword, name string) bool {
	if offset >= len(masked) || !strings.HasPrefix(masked[offset:], keyword) {
		return false
	}
	i := offset + len(keyword)
	spaces := 0
	for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t') {
		i++
		spaces++
	}
	if spaces == 0 || !strings.HasPrefix(masked[i:], name) {
		return false
	}
	end := i + len(name)
	return end == len(masked) || !isIdentByte(masked[end])
}

// matchBrace returns the offset of the brace closing the one at open, or
// len(masked) when the braces never balance.
func matchBrace(masked string, open int) int {
	depth := 0
	for i := open; i < len(masked); i++ {
		switch masked[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(masked)
}

// inheritance parses the text between a declared name and its body.
//
// Generic parameters and the where clause are removed; the remainder after
// a leading ':' is split on top-level commas and '&'.
func (e *Extractor) inheritance(header string) []string {
	h := strings.TrimSpace(header)
	if strings.HasPrefix(h, "<") {
		end := matchDelim(h, 0, '<', '>')
		if end < 0 {
			return nil
		}
		h = strings.TrimSpace(h[end+1:])
	}
	if !strings.HasPrefix(h, ":") {
		return nil
	}
	h = h[1:]
	if loc := e.whereRe.FindStringIndex(h); loc != nil {
		h = h[:loc[0]]
	}

	var targets []string
	for _, entry := range splitTopLevel(h, ',') {
		for _, part := range splitTopLevel(entry, '&') {
			if name, ok := e.inheritedName(part); ok {
				targets = append(targets, name)
			}
		}
	}
	return targets
}

// inheritedName reduces one inheritance entry to a simple type name.
func (e *Extractor) inheritedName(entry string) (string, bool) {
	p := &typeParser{s: entry}
	p.skipPrefixes()
	rest := strings.TrimSpace(p.s[p.i:])
	if rest == "" || strings.HasPrefix(rest, "~") {
		return "", false
	}
	if e.deniedNamespace(rest) {
		return "", false
	}

	p = &typeParser{s: rest}
	qualified := p.identPath()
	if qualified == "" {
		return "", false
	}
	name := lastComponent(qualified)
	if e.IsPrimitive(name) {
		return "", false
	}
	return name, true
}

// usages returns the target type of every typed var/let binding in body.
func (e *Extractor) usages(body string) []string {
	var targets []string
	for _, loc := range e.bindingRe.FindAllStringIndex(body, -1) {
		name, ok := e.typeTarget(&typeParser{s: body, i: loc[1]}, 0)
		if !ok || e.IsPrimitive(name) {
			continue
		}
		targets = append(targets, name)
	}
	return targets
}
