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

// notTypeNames are words that follow "class" in member declarations
// ("class func", "class var", ...) and are never type names.
var notTypeNames = map[string]struct{}{
	"func":        {},
	"var":         {},
	"let":         {},
	"subscript":   {},
	"override":    {},
	"init":        {},
	"deinit":      {},
	"static":      {},
	"final":       {},
	"required":    {},
	"convenience": {},
	"case":        {},
	"typealias":   {},
}

// Declarations returns every declaration site in src.
//
// Description:
//
//	Comments and string literals are masked first, so commented-out
//	declarations are never reported. Symbols sharing a name are all
//	returned in source order.
//
// Inputs:
//
//	path - Slash-separated path stored on each Symbol.
//	src - Raw file contents.
//
// Outputs:
//
//	[]Symbol - Declarations in source order. Empty if none.
func (e *Extractor) Declarations(path string, src []byte) []Symbol {
	return e.declarations(path, string(maskSource(src)))
}

func (e *Extractor) declarations(path, masked string) []Symbol {
	matches := e.declRe.FindAllStringSubmatchIndex(masked, -1)
	symbols := make([]Symbol, 0, len(matches))

	// Matches are ordered, so newlines are counted incrementally.
	line, counted := 1, 0
	for _, m := range matches {
		line += strings.Count(masked[counted:m[0]], "\n")
		counted = m[0]

		keyword := masked[m[2]:m[3]]
		name := masked[m[4]:m[5]]

		if _, skip := notTypeNames[name]; skip {
			continue
		}
		if e.isIgnored(name) {
			continue
		}

		kind, ok := ParseKind(keyword)
		if !ok {
			continue
		}

		symbols = append(symbols, Symbol{
			Name:   name,
			Kind:   kind,
			File:   path,
			Line:   line,
			Offset: m[2],
		})
	}
	return symbols
}
