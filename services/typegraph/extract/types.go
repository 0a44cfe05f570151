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
	"fmt"
	"strings"
)

// Kind is the declaration kind of a type.
type Kind int

const (
	// KindUnknown is the zero value and never produced by extraction.
	KindUnknown Kind = iota

	// KindClass is a reference type declared with "class".
	KindClass

	// KindStruct is a value type declared with "struct".
	KindStruct

	// KindEnum is an enumeration declared with "enum".
	KindEnum

	// KindProtocol is an interface declared with "protocol".
	KindProtocol
)

// kindNames maps Kind values to their declaration keywords.
var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindClass:    "class",
	KindStruct:   "struct",
	KindEnum:     "enum",
	KindProtocol: "protocol",
}

// Kinds lists the four declaration kinds in keyword order.
var Kinds = []Kind{KindClass, KindStruct, KindEnum, KindProtocol}

// String returns the declaration keyword for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the four declaration kinds.
func (k Kind) Valid() bool {
	return k >= KindClass && k <= KindProtocol
}

// ParseKind converts a keyword into a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if k.Valid() && name == strings.ToLower(s) {
			return k, true
		}
	}
	return KindUnknown, false
}

// MarshalText encodes the kind as its keyword.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a keyword into the kind.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown kind %q", string(b))
	}
	*k = parsed
	return nil
}

// EdgeKind classifies a dependency between two types.
type EdgeKind int

const (
	// EdgeKindUnknown is the zero value.
	EdgeKindUnknown EdgeKind = iota

	// EdgeKindInheritance is a superclass or protocol conformance.
	EdgeKindInheritance

	// EdgeKindUsage is a stored property or binding typed with another type.
	EdgeKindUsage
)

var edgeKindNames = map[EdgeKind]string{
	EdgeKindUnknown:     "unknown",
	EdgeKindInheritance: "inheritance",
	EdgeKindUsage:       "usage",
}

// String returns the lower-case edge kind name.
func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// ParseEdgeKind converts a name into an EdgeKind. Unrecognised names map to
// EdgeKindUnknown and false.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	for k, name := range edgeKindNames {
		if name == strings.ToLower(s) {
			return k, true
		}
	}
	return EdgeKindUnknown, false
}

// MarshalText encodes the edge kind as its name.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name into the edge kind.
func (k *EdgeKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseEdgeKind(string(b))
	if !ok {
		return fmt.Errorf("unknown edge kind %q", string(b))
	}
	*k = parsed
	return nil
}

// Symbol is one textual declaration site of a type.
//
// Symbols sharing a Name are all recorded; merging is the graph builder's job.
type Symbol struct {
	// Name is the declared identifier. Never empty.
	Name string `json:"name"`

	// Kind is the declaration kind.
	Kind Kind `json:"kind"`

	// File is the slash-separated path relative to the project root.
	File string `json:"file"`

	// Line is the 1-based line of the declaration.
	Line int `json:"line"`

	// Offset is the byte offset of the kind keyword in the source. Used to
	// find the body of this exact declaration when names are shadowed.
	// -1 when unknown.
	Offset int `json:"-"`
}

// Edge is an unresolved dependency from a symbol to a type name.
type Edge struct {
	// Source is the symbol whose declaration or body contained the match.
	Source Symbol `json:"source"`

	// Target is the referenced type name, not yet resolved to a node.
	Target string `json:"target"`

	// Kind is the dependency kind.
	Kind EdgeKind `json:"kind"`
}

// FileResult is everything extracted from one source file.
type FileResult struct {
	// Path is the slash-separated path relative to the project root.
	Path string

	// Symbols are the declarations in source order.
	Symbols []Symbol

	// Edges are the dependencies of Symbols in source order.
	Edges []Edge

	// Err is set when the file could not be read. Symbols and Edges are
	// empty in that case.
	Err error
}
