// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package walk

import (
	"path"
	"strings"
)

// testDirs are directory names whose contents are test code.
var testDirs = []string{"Tests", "UITests", "Specs", "Mocks", "Fixtures"}

// testSuffixes are file name stems marking XCTest and Quick/Nimble files.
var testSuffixes = []string{"Tests", "Test", "Spec", "Specs", "Mock", "Mocks"}

// IsTestFile reports whether a slash path names test code.
//
// Description:
//
//	Matches the Xcode and SwiftPM conventions: any path segment named
//	Tests or ending in "Tests" (e.g. AppTests/), and file stems ending
//	in Tests, Test, Spec or Mock. Segment names are compared exactly so
//	"Contest.swift" and "Testimonials/" are not tests.
//
// Inputs:
//
//	p - A slash-separated path, relative or absolute.
//
// Outputs:
//
//	bool - True if the file is test code by naming convention.
//
// Thread Safety: Safe for concurrent use (pure function).
func IsTestFile(p string) bool {
	dir, base := path.Split(p)
	stem := strings.TrimSuffix(base, path.Ext(base))

	for _, suffix := range testSuffixes {
		if len(stem) > len(suffix) && strings.HasSuffix(stem, suffix) {
			return true
		}
	}

	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		for _, d := range testDirs {
			if seg == d {
				return true
			}
		}
		if len(seg) > len("Tests") && strings.HasSuffix(seg, "Tests") {
			return true
		}
	}
	return false
}
