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

import "strings"

// maxTypeDepth bounds recursion into nested type expressions.
const maxTypeDepth = 16

// wrapperArgs maps standard generic containers to the index of the type
// argument that names the stored element.
var wrapperArgs = map[string]int{
	"Array":                       0,
	"ArraySlice":                  0,
	"ContiguousArray":             0,
	"Optional":                    0,
	"ImplicitlyUnwrappedOptional": 0,
	"Set":                         0,
	"Dictionary":                  1,
}

// typePrefixes are keywords that may precede a type without changing the
// referenced name.
var typePrefixes = []string{"inout", "some", "any", "borrowing", "consuming", "sending", "isolated"}

// typeParser is a cursor over a type expression.
type typeParser struct {
	s string
	i int
}

// typeTarget returns the simple name a type expression refers to.
//
// Description:
//
//	Handles bare and dotted names (last component), [T] (T), [K: V] (V),
//	function types (the return type), parenthesised single types, and the
//	standard generic containers (their element type). Other generic types
//	resolve to the outer name. Tuples resolve to nothing.
//
// Inputs:
//
//	p - Cursor positioned at the start of the expression.
//	depth - Current recursion depth.
//
// Outputs:
//
//	string - The referenced name.
//	bool - False if no name could be determined.
func (e *Extractor) typeTarget(p *typeParser, depth int) (string, bool) {
	if depth > maxTypeDepth {
		return "", false
	}
	p.skipPrefixes()
	if p.eof() {
		return "", false
	}

	switch p.peek() {
	case '[':
		inner, ok := p.enclosed('[', ']')
		if !ok {
			return "", false
		}
		parts := splitTopLevel(inner, ':')
		return e.typeTarget(&typeParser{s: parts[len(parts)-1]}, depth+1)

	case '(':
		inner, ok := p.enclosed('(', ')')
		if !ok {
			return "", false
		}
		p.skipEffects()
		if strings.HasPrefix(p.s[p.i:], "->") {
			p.i += 2
			return e.typeTarget(p, depth+1)
		}
		elems := splitTopLevel(inner, ',')
		if len(elems) != 1 || strings.TrimSpace(elems[0]) == "" || strings.Contains(elems[0], ":") {
			return "", false
		}
		return e.typeTarget(&typeParser{s: elems[0]}, depth+1)
	}

	qualified := p.identPath()
	if qualified == "" {
		return "", false
	}
	name := lastComponent(qualified)

	if !p.eof() && p.peek() == '<' {
		args, ok := p.enclosed('<', '>')
		if ok {
			if idx, wrapper := wrapperArgs[name]; wrapper {
				parts := splitTopLevel(args, ',')
				if idx < len(parts) {
					return e.typeTarget(&typeParser{s: parts[idx]}, depth+1)
				}
			}
		}
	}
	return name, true
}

func (p *typeParser) eof() bool {
	return p.i >= len(p.s)
}

func (p *typeParser) peek() byte {
	return p.s[p.i]
}

func (p *typeParser) skipSpace() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

// skipPrefixes skips whitespace, attributes (@escaping, @Sendable(...))
// and ownership or opaque-type keywords.
func (p *typeParser) skipPrefixes() {
	for {
		p.skipSpace()
		if p.eof() {
			return
		}
		if p.peek() == '@' {
			p.i++
			p.identPath()
			if !p.eof() && p.peek() == '(' {
				if _, ok := p.enclosed('(', ')'); !ok {
					p.i = len(p.s)
				}
			}
			continue
		}
		if !p.skipKeyword(typePrefixes...) {
			return
		}
	}
}

// skipEffects skips "async", "throws", "throws(E)" and "rethrows" between
// a parameter list and its arrow.
func (p *typeParser) skipEffects() {
	for {
		p.skipSpace()
		if p.eof() {
			return
		}
		if p.skipKeyword("async", "rethrows") {
			continue
		}
		if p.skipKeyword("throws") {
			if !p.eof() && p.peek() == '(' {
				p.enclosed('(', ')')
			}
			continue
		}
		return
	}
}

// skipKeyword consumes the first of words found at the cursor as a whole
// word and reports whether one was consumed.
func (p *typeParser) skipKeyword(words ...string) bool {
	rest := p.s[p.i:]
	for _, w := range words {
		if strings.HasPrefix(rest, w) && (len(rest) == len(w) || !isIdentByte(rest[len(w)])) {
			p.i += len(w)
			return true
		}
	}
	return false
}

// identPath consumes Ident(.Ident)* and returns it.
func (p *typeParser) identPath() string {
	start := p.i
	for {
		if p.eof() || !isIdentStart(p.peek()) {
			break
		}
		for !p.eof() && isIdentByte(p.peek()) {
			p.i++
		}
		if p.i+1 < len(p.s) && p.s[p.i] == '.' && isIdentStart(p.s[p.i+1]) {
			p.i++
			continue
		}
		break
	}
	return p.s[start:p.i]
}

// enclosed consumes a balanced open...close group at the cursor and returns
// its inner text.
func (p *typeParser) enclosed(open, close byte) (string, bool) {
	end := matchDelim(p.s, p.i, open, close)
	if end < 0 {
		return "", false
	}
	inner := p.s[p.i+1 : end]
	p.i = end + 1
	return inner, true
}

// matchDelim returns the index of the delimiter closing the one at start, or
// -1. An arrow's '>' is not treated as a closing angle bracket.
func matchDelim(s string, start int, open, close byte) int {
	if start >= len(s) || s[start] != open {
		return -1
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			if close == '>' && i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep where sep is not nested in (), [] or <>.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '<':
			depth++
		case ')', ']':
			depth--
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func lastComponent(qualified string) string {
	if idx := strings.LastIndexByte(qualified, '.'); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
