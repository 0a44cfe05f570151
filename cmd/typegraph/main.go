// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command typegraph builds a type dependency graph for a Swift project and
// reports circular dependencies.
//
// Usage:
//
//	typegraph analyze ./MyApp
//	typegraph analyze --config typegraph.yaml -o graph.json
//	typegraph analyze ./MyApp --watch --snapshot-db ~/.typegraph/snapshots
//	typegraph serve --addr :8080 --snapshot-db ~/.typegraph/snapshots
//	typegraph snapshots list --project /abs/path/MyApp --snapshot-db ~/.typegraph/snapshots
//
// Exit codes:
//
//	0 - Success
//	1 - Error
//	2 - Cycles found with --fail-on-cycles
//
// Example requests against serve:
//
//	curl http://localhost:8080/v1/typegraph/health
//
//	curl -X POST http://localhost:8080/v1/typegraph/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"sources": {"A.swift": "class A { var b: B? }", "B.swift": "class B { var a: A? }"}}'
package main

import (
	"errors"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errCyclesFound):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
