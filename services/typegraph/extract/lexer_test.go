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
	"strings"
	"testing"
)

func TestMaskSource_PreservesLengthAndNewlines(t *testing.T) {
	src := "class A {} // class B\n/* class C\n class D */\nlet s = \"class E\"\n"
	masked := maskSource([]byte(src))

	if len(masked) != len(src) {
		t.Fatalf("masked length = %d, want %d", len(masked), len(src))
	}
	if strings.Count(string(masked), "\n") != strings.Count(src, "\n") {
		t.Errorf("newline count changed")
	}
	for _, hidden := range []string{"class B", "class C", "class D", "class E"} {
		if strings.Contains(string(masked), hidden) {
			t.Errorf("masked text still contains %q: %q", hidden, masked)
		}
	}
	if !strings.HasPrefix(string(masked), "class A {}") {
		t.Errorf("code outside comments was modified: %q", masked)
	}
}

func TestMaskSource_NestedBlockComment(t *testing.T) {
	src := "/* outer /* inner */ still comment class X */ struct Y {}"
	masked := string(maskSource([]byte(src)))

	if strings.Contains(masked, "class X") {
		t.Errorf("nested comment tail leaked: %q", masked)
	}
	if !strings.Contains(masked, "struct Y {}") {
		t.Errorf("code after nested comment was masked: %q", masked)
	}
}

func TestMaskSource_StringForms(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		hidden string
		kept   string
	}{
		{
			name:   "escaped quote",
			src:    `let a = "x \" class Q {" ; struct K {}`,
			hidden: "class Q",
			kept:   "struct K {}",
		},
		{
			name:   "multi-line literal",
			src:    "let a = \"\"\"\nclass Q {\n\"\"\"\nstruct K {}",
			hidden: "class Q",
			kept:   "struct K {}",
		},
		{
			name:   "raw literal",
			src:    `let a = #"class Q { "quoted" }"# ; struct K {}`,
			hidden: "class Q",
			kept:   "struct K {}",
		},
		{
			name:   "interpolation with nested quotes",
			src:    `let a = "v: \(f("{")) class Q" ; struct K {}`,
			hidden: "class Q",
			kept:   "struct K {}",
		},
		{
			name:   "unterminated literal stops at line end",
			src:    "let a = \"oops\nstruct K {}",
			hidden: "oops",
			kept:   "struct K {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked := string(maskSource([]byte(tt.src)))
			if len(masked) != len(tt.src) {
				t.Fatalf("length changed: %d != %d", len(masked), len(tt.src))
			}
			if strings.Contains(masked, tt.hidden) {
				t.Errorf("literal content %q not masked: %q", tt.hidden, masked)
			}
			if !strings.Contains(masked, tt.kept) {
				t.Errorf("code %q was masked: %q", tt.kept, masked)
			}
		})
	}
}

func TestMaskSource_BracesInsideLiteralsDoNotCount(t *testing.T) {
	src := "struct A {\n let s = \"}}}\"\n // }\n let b: B\n}\nstruct B {}\n"
	masked := string(maskSource([]byte(src)))
	open := strings.IndexByte(masked, '{')
	end := matchBrace(masked, open)
	if !strings.Contains(masked[open:end], "let b: B") {
		t.Errorf("body ended early: %q", masked[open:end])
	}
}
