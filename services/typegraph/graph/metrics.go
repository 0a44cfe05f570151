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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("typegraph.graph")
	meter  = otel.Meter("typegraph.graph")
)

// Metrics for build and cycle detection.
var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	nodesCreated    metric.Int64Histogram
	edgesCreated    metric.Int64Histogram
	edgesDiscarded  metric.Int64Counter
	detectLatency   metric.Float64Histogram
	cyclesFound     metric.Int64Histogram
	detectTruncated metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"typegraph_build_duration_seconds",
			metric.WithDescription("Duration of graph build operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"typegraph_build_total",
			metric.WithDescription("Total number of graph build operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesCreated, err = meter.Int64Histogram(
			"typegraph_nodes_created",
			metric.WithDescription("Number of nodes created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"typegraph_edges_created",
			metric.WithDescription("Number of edges created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesDiscarded, err = meter.Int64Counter(
			"typegraph_edges_discarded_total",
			metric.WithDescription("Edges dropped because the target was never declared"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectLatency, err = meter.Float64Histogram(
			"typegraph_cycle_detection_duration_seconds",
			metric.WithDescription("Duration of cycle enumeration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesFound, err = meter.Int64Histogram(
			"typegraph_cycles_found",
			metric.WithDescription("Number of cycles returned per detection"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectTruncated, err = meter.Int64Counter(
			"typegraph_cycle_detection_truncated_total",
			metric.WithDescription("Cycle detections stopped early"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	edgesDiscarded.Add(ctx, int64(stats.DiscardedEdges))

	if success {
		nodesCreated.Record(ctx, int64(stats.NodesCreated))
		edgesCreated.Record(ctx, int64(stats.EdgesCreated))
	}
}

// recordDetectMetrics records metrics for a cycle detection.
func recordDetectMetrics(ctx context.Context, duration time.Duration, found int, reason TruncationReason) {
	if err := initMetrics(); err != nil {
		return
	}

	detectLatency.Record(ctx, duration.Seconds())
	cyclesFound.Record(ctx, int64(found))
	if reason != TruncationNone {
		detectTruncated.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", string(reason))),
		)
	}
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphBuilder.Build",
		trace.WithAttributes(
			attribute.Int("graph.file_count", fileCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, stats BuildStats, incomplete bool) {
	span.SetAttributes(
		attribute.Int("graph.node_count", stats.NodesCreated),
		attribute.Int("graph.edge_count", stats.EdgesCreated),
		attribute.Int("graph.discarded_edges", stats.DiscardedEdges),
		attribute.Bool("graph.incomplete", incomplete),
	)
}

// startDetectSpan creates a span for cycle detection.
func startDetectSpan(ctx context.Context, g *Graph, opts DetectorOptions) (context.Context, trace.Span) {
	return tracer.Start(ctx, "CycleDetector.Detect",
		trace.WithAttributes(
			attribute.Int("graph.node_count", g.NodeCount()),
			attribute.Int("graph.edge_count", g.EdgeCount()),
			attribute.Int("cycles.max", opts.MaxCycles),
			attribute.String("cycles.timeout", opts.Timeout.String()),
		),
	)
}

// setDetectSpanResult sets the result attributes on a detection span.
func setDetectSpanResult(span trace.Span, res *CycleResult) {
	span.SetAttributes(
		attribute.Int("cycles.count", res.CountFound),
		attribute.Bool("cycles.truncated", res.Truncated),
		attribute.String("cycles.truncation_reason", string(res.Reason)),
	)
}
