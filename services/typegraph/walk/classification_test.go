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

import "testing"

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"App/Model.swift", false},
		{"App/ModelTests.swift", true},
		{"App/ModelTest.swift", true},
		{"App/ModelSpec.swift", true},
		{"App/NetworkMock.swift", true},
		{"Tests/Helpers.swift", true},
		{"Sources/AppTests/Helpers.swift", true},
		{"AppUITests/Flow.swift", true},
		{"Fixtures/Sample.swift", true},
		{"App/Contest.swift", false},
		{"Testimonials/Quote.swift", false},
		{"App/Tests.swift", false},
		{"App/Latest.swift", false},
		{"/abs/path/Tests/X.swift", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsTestFile(tt.path); got != tt.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
