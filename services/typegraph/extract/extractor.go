// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract recovers type declarations and their dependencies from
// Swift-like source text using lexical heuristics.
//
// # Pipeline
//
// Each file goes through three steps:
//  1. Mask comments and string literals (offsets are preserved).
//  2. Find declaration sites of classes, structs, enums and protocols.
//  3. Delimit each declaration's body by brace depth and collect
//     inheritance clauses and typed var/let bindings as edges.
//
// There is no grammar and no type resolution. Edges carry target names
// only; resolving them to declarations is done by the graph package.
//
// # Thread Safety
//
// An Extractor is immutable after New and safe for concurrent use.
package extract

import (
	"regexp"
	"strings"
)

// DefaultNamespaceDenylist lists framework prefixes whose types are never
// recorded as inheritance targets.
var DefaultNamespaceDenylist = []string{"UIKit.", "Foundation."}

// DefaultPrimitiveTypes lists built-in type names that never become edges.
var DefaultPrimitiveTypes = []string{
	"Int", "Int8", "Int16", "Int32", "Int64",
	"UInt", "UInt8", "UInt16", "UInt32", "UInt64",
	"Double", "Float", "Float32", "Float64", "Float80", "CGFloat", "Decimal",
	"Bool",
	"String", "Character", "Substring",
	"Date", "Data", "URL", "UUID",
	"Any", "AnyObject", "AnyClass", "Void", "Never", "Self",
}

// DefaultIgnoredTypes lists declaration names that are skipped entirely.
var DefaultIgnoredTypes = []string{"CodingKeys"}

// Options configures an Extractor.
type Options struct {
	// NamespaceDenylist holds qualified-name prefixes (e.g. "UIKit.") whose
	// inheritance entries are discarded.
	NamespaceDenylist []string

	// PrimitiveTypes holds type names never recorded as edge targets.
	PrimitiveTypes []string

	// IgnoredTypes holds declaration names that produce no symbol. Names
	// ending in "CodingKeys" are always ignored.
	IgnoredTypes []string
}

// DefaultOptions returns the default denylists.
func DefaultOptions() Options {
	return Options{
		NamespaceDenylist: append([]string(nil), DefaultNamespaceDenylist...),
		PrimitiveTypes:    append([]string(nil), DefaultPrimitiveTypes...),
		IgnoredTypes:      append([]string(nil), DefaultIgnoredTypes...),
	}
}

// Extractor holds the compiled patterns and denylists for one analysis run.
type Extractor struct {
	declRe    *regexp.Regexp
	bindingRe *regexp.Regexp
	whereRe   *regexp.Regexp

	namespaceDenylist []string
	primitives        map[string]struct{}
	ignored           map[string]struct{}
}

// declarationPattern matches one declaration site at the start of a line:
// optional attributes and modifiers, the kind keyword, and the name.
const declarationPattern = `(?m)^[ \t]*` +
	`(?:@\w+(?:\([^)\n]*\))?[ \t]+)*` +
	`(?:(?:public|private|internal|fileprivate|open|final|indirect|package)(?:\([ \t]*set[ \t]*\))?[ \t]+)*` +
	`(class|struct|enum|protocol)[ \t]+([A-Za-z_][A-Za-z0-9_]*)`

// New creates an Extractor from opts.
//
// Example:
//
//	ex := extract.New(extract.DefaultOptions())
//	res := ex.ExtractFile("Sources/App/Model.swift", src)
func New(opts Options) *Extractor {
	e := &Extractor{
		declRe:            regexp.MustCompile(declarationPattern),
		bindingRe:         regexp.MustCompile(`\b(?:var|let)[ \t]+[A-Za-z_][A-Za-z0-9_]*[ \t]*:`),
		whereRe:           regexp.MustCompile(`\bwhere\b`),
		namespaceDenylist: append([]string(nil), opts.NamespaceDenylist...),
		primitives:        make(map[string]struct{}, len(opts.PrimitiveTypes)),
		ignored:           make(map[string]struct{}, len(opts.IgnoredTypes)),
	}
	for _, p := range opts.PrimitiveTypes {
		e.primitives[strings.TrimSpace(p)] = struct{}{}
	}
	for _, name := range opts.IgnoredTypes {
		e.ignored[strings.TrimSpace(name)] = struct{}{}
	}
	return e
}

// ExtractFile runs declaration and dependency extraction over one file.
//
// Inputs:
//
//	path - Slash-separated path relative to the project root.
//	src - Raw file contents.
//
// Outputs:
//
//	FileResult - Symbols and edges in source order. Err is always nil.
func (e *Extractor) ExtractFile(path string, src []byte) FileResult {
	masked := string(maskSource(src))
	symbols := e.declarations(path, masked)
	return FileResult{
		Path:    path,
		Symbols: symbols,
		Edges:   e.dependencies(masked, symbols),
	}
}

// IsPrimitive reports whether name is on the primitive denylist.
func (e *Extractor) IsPrimitive(name string) bool {
	_, ok := e.primitives[name]
	return ok
}

// isIgnored reports whether a declaration with this name is skipped.
func (e *Extractor) isIgnored(name string) bool {
	if _, ok := e.ignored[name]; ok {
		return true
	}
	return strings.HasSuffix(name, "CodingKeys")
}

// deniedNamespace reports whether a qualified type name starts with a
// denylisted namespace prefix.
func (e *Extractor) deniedNamespace(qualified string) bool {
	for _, prefix := range e.namespaceDenylist {
		if prefix != "" && strings.HasPrefix(qualified, prefix) {
			return true
		}
	}
	return false
}
