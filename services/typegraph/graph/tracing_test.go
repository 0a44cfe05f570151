// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"testing"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// The package tracer delegates to the first provider installed in the
// process, so this is the only test that installs one.
func TestBuildAndDetect_RecordSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})

	files := []extract.FileResult{{
		Path:    "m.swift",
		Symbols: []extract.Symbol{makeSymbol("A"), makeSymbol("B")},
		Edges: []extract.Edge{
			makeEdge("A", "B", extract.EdgeKindUsage),
			makeEdge("B", "A", extract.EdgeKindUsage),
			makeEdge("A", "Missing", extract.EdgeKindUsage),
		},
	}}
	build, err := NewBuilder().Build(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DetectCycles(context.Background(), build.Graph, DefaultDetectorOptions()); err != nil {
		t.Fatal(err)
	}

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range recorder.Ended() {
		spans[s.Name()] = s
	}

	buildSpan, ok := spans["GraphBuilder.Build"]
	if !ok {
		t.Fatalf("build span not recorded; got %v", keys(spans))
	}
	if _, ok := spans["CycleDetector.Detect"]; !ok {
		t.Fatalf("detect span not recorded; got %v", keys(spans))
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range buildSpan.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if len(attrs) == 0 {
		t.Error("build span has no attributes")
	}
}

func keys(m map[string]sdktrace.ReadOnlySpan) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
