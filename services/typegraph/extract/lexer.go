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

// maskSource blanks out comments and string-literal contents.
//
// Description:
//
//	Returns a copy of src where every byte inside a line comment, a
//	(possibly nested) block comment, or a string literal body is replaced
//	with a space. Newlines are kept so byte offsets and line numbers in the
//	masked text match the original. String delimiters are kept so the
//	literal still separates the tokens around it.
//
//	Recognised literal forms: "...", """...""" and raw #"..."# with any
//	number of pounds. Interpolations \( ... ) are skipped as part of the
//	literal, including quotes nested inside them.
//
// Inputs:
//
//	src - Raw file contents.
//
// Outputs:
//
//	[]byte - Masked copy with len(src) bytes.
func maskSource(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)

	n := len(src)
	i := 0
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			i = maskBlockComment(src, out, i)
		case c == '#' && rawStringStart(src, i) > 0:
			i = maskRawString(src, out, i)
		case c == '"':
			i = maskString(src, out, i)
		default:
			i++
		}
	}
	return out
}

// maskBlockComment masks a block comment starting at i and returns the index
// after it. Unterminated comments run to end of input.
func maskBlockComment(src, out []byte, i int) int {
	n := len(src)
	depth := 0
	for i < n {
		switch {
		case src[i] == '/' && i+1 < n && src[i+1] == '*':
			depth++
			blank(out, i, i+2)
			i += 2
		case src[i] == '*' && i+1 < n && src[i+1] == '/':
			depth--
			blank(out, i, i+2)
			i += 2
			if depth == 0 {
				return i
			}
		default:
			blank(out, i, i+1)
			i++
		}
	}
	return i
}

// maskString masks a "..." or """...""" literal starting at the opening quote.
func maskString(src, out []byte, i int) int {
	n := len(src)
	multi := i+2 < n && src[i+1] == '"' && src[i+2] == '"'
	if multi {
		i += 3
		for i < n {
			if src[i] == '\\' {
				i = skipEscape(src, out, i)
				continue
			}
			if src[i] == '"' && i+2 < n && src[i+1] == '"' && src[i+2] == '"' {
				return i + 3
			}
			blank(out, i, i+1)
			i++
		}
		return i
	}

	i++
	for i < n {
		switch src[i] {
		case '\\':
			i = skipEscape(src, out, i)
		case '"':
			return i + 1
		case '\n':
			// Unterminated single-line literal. Stop at the line end so one
			// stray quote cannot swallow the rest of the file.
			return i
		default:
			blank(out, i, i+1)
			i++
		}
	}
	return i
}

// skipEscape masks an escape sequence at i. Interpolations are masked up to
// the matching close paren.
func skipEscape(src, out []byte, i int) int {
	n := len(src)
	if i+1 >= n {
		blank(out, i, n)
		return n
	}
	if src[i+1] != '(' {
		blank(out, i, i+2)
		return i + 2
	}

	blank(out, i, i+2)
	i += 2
	depth := 1
	for i < n && depth > 0 {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '"':
			end := i + 1
			for end < n && src[end] != '"' && src[end] != '\n' {
				if src[end] == '\\' {
					end++
				}
				end++
			}
			if end < n && src[end] == '"' {
				end++
			}
			blank(out, i, end)
			i = end
			continue
		}
		if src[i] != '\n' {
			out[i] = ' '
		}
		i++
	}
	return i
}

// rawStringStart returns the number of leading pounds when a raw string
// literal starts at i, or 0.
func rawStringStart(src []byte, i int) int {
	pounds := 0
	for i+pounds < len(src) && src[i+pounds] == '#' {
		pounds++
	}
	if i+pounds < len(src) && src[i+pounds] == '"' {
		return pounds
	}
	return 0
}

// maskRawString masks a #"..."# literal. Escapes are not processed.
func maskRawString(src, out []byte, i int) int {
	n := len(src)
	pounds := rawStringStart(src, i)
	i += pounds + 1
	for i < n {
		if src[i] == '"' && closesRaw(src, i+1, pounds) {
			return i + 1 + pounds
		}
		blank(out, i, i+1)
		i++
	}
	return i
}

func closesRaw(src []byte, i, pounds int) bool {
	if i+pounds > len(src) {
		return false
	}
	for j := 0; j < pounds; j++ {
		if src[i+j] != '#' {
			return false
		}
	}
	return true
}

// blank replaces out[from:to] with spaces, preserving newlines.
func blank(out []byte, from, to int) {
	if to > len(out) {
		to = len(out)
	}
	for j := from; j < to; j++ {
		if out[j] != '\n' {
			out[j] = ' '
		}
	}
}
