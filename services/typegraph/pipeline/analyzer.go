// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs a full analysis: discover files, extract symbols
// and dependencies in parallel, build the graph, detect cycles and produce
// suggestions and a report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/config"
	"github.com/AleutianAI/typegraph/services/typegraph/extract"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/AleutianAI/typegraph/services/typegraph/walk"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("typegraph.pipeline")

// Sentinel errors.
var (
	ErrNilConfig = errors.New("config must not be nil")
	ErrNilLogger = errors.New("logger must not be nil")
)

// Result holds everything one run produced.
type Result struct {
	Report      *graph.Report
	Build       *graph.BuildResult
	Cycles      *graph.CycleResult
	Suggestions graph.Suggestions
	Walk        *walk.Result

	// Graph is the frozen graph. Safe for concurrent reads.
	Graph *graph.Graph
}

// Analyzer runs the analysis pipeline for one configuration.
//
// Thread Safety: Safe for concurrent use. Each call to Run builds its own
// graph; the extractor is read-only after construction.
type Analyzer struct {
	cfg       *config.Config
	extractor *extract.Extractor
	logger    *slog.Logger
	readFile  func(string) ([]byte, error)
	progress  graph.ProgressFunc
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithProgress forwards graph build progress to fn.
func WithProgress(fn graph.ProgressFunc) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// withReadFile replaces os.ReadFile. Tests use it to inject read failures.
func withReadFile(fn func(string) ([]byte, error)) Option {
	return func(a *Analyzer) { a.readFile = fn }
}

// NewAnalyzer creates an Analyzer.
//
// Inputs:
//
//	cfg - Validated configuration. Must not be nil.
//	logger - Destination for run logs. Must not be nil.
//
// Outputs:
//
//	*Analyzer - Ready to run.
//	error - Non-nil if an argument is nil.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	a := &Analyzer{
		cfg:       cfg,
		extractor: extract.New(cfg.ExtractorOptions()),
		logger:    logger,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run discovers files under the configured project directory and analyses
// them.
//
// Description:
//
//	Walk errors (bad root, invalid overrides) fail the run. Per-file read
//	errors are recorded on the build result and do not.
//
// Outputs:
//
//	*Result - The analysis. Result.Report is never nil on success.
//	error - Non-nil if discovery fails or ctx is cancelled before the
//	  graph could be built.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	walkRes, err := walk.Files(ctx, walk.Options{
		Root:             a.cfg.ProjectDirectory,
		Extension:        a.cfg.FileExtension,
		ExcludedDirs:     a.cfg.ExcludedDirectories,
		ExcludeGlobs:     a.cfg.ExcludeGlobs,
		RespectGitignore: a.cfg.RespectGitignore,
		IncludeTests:     a.cfg.IncludeTests,
		MaxFileBytes:     a.cfg.MaxFileBytes,
		Logger:           a.logger,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "walk failed")
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	span.SetAttributes(attribute.Int("pipeline.files", len(walkRes.Files)))
	a.logger.Info("source files discovered",
		slog.String("root", walkRes.Root),
		slog.Int("files", len(walkRes.Files)),
	)

	files, err := a.extractAll(ctx, walkRes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res, err := a.analyze(ctx, walkRes.Root, files)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Walk = walkRes
	return res, nil
}

// AnalyzeSources analyses in-memory sources keyed by slash path. It skips
// discovery and is used by the HTTP server and tests.
func (a *Analyzer) AnalyzeSources(ctx context.Context, root string, sources map[string][]byte) (*Result, error) {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]extract.FileResult, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files[i] = a.extractor.ExtractFile(p, sources[p])
	}
	return a.analyze(ctx, root, files)
}

// extractAll reads and extracts every discovered file on a bounded pool.
// Results are stored by index so ordering matches walkRes.Files.
func (a *Analyzer) extractAll(ctx context.Context, walkRes *walk.Result) ([]extract.FileResult, error) {
	results := make([]extract.FileResult, len(walkRes.Files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.WorkerCount())

	for i, rel := range walkRes.Files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			src, err := a.readFile(walkRes.Abs(rel))
			if err != nil {
				a.logger.Warn("failed to read source file",
					slog.String("file", rel),
					slog.String("error", err.Error()),
				)
				results[i] = extract.FileResult{Path: rel, Err: err}
				return nil
			}
			results[i] = a.extractor.ExtractFile(rel, src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting sources: %w", err)
	}
	return results, nil
}

// analyze builds the graph, detects cycles and assembles the report.
func (a *Analyzer) analyze(ctx context.Context, root string, files []extract.FileResult) (*Result, error) {
	builder := graph.NewBuilder(
		graph.WithProjectRoot(root),
		graph.WithProgressCallback(a.progress),
	)
	build, err := builder.Build(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	if build.Incomplete {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("building graph: %w", err)
		}
	}
	a.logFileErrors(build)

	cycles, err := graph.DetectCycles(ctx, build.Graph, a.cfg.DetectorOptions())
	if err != nil {
		return nil, fmt.Errorf("detecting cycles: %w", err)
	}
	suggestions := graph.Suggest(build.Graph, cycles.Cycles)
	report := graph.NewReport(uuid.NewString(), build, cycles, suggestions)

	a.logSummary(build, cycles)
	return &Result{
		Report:      report,
		Build:       build,
		Cycles:      cycles,
		Suggestions: suggestions,
		Graph:       build.Graph,
	}, nil
}

func (a *Analyzer) logFileErrors(build *graph.BuildResult) {
	for _, fe := range build.FileErrors {
		level := slog.LevelWarn
		if errors.Is(fe.Err, fs.ErrPermission) {
			level = slog.LevelError
		}
		a.logger.Log(context.Background(), level, "file skipped",
			slog.String("file", fe.FilePath),
			slog.String("error", fe.Err.Error()),
		)
	}
}

// logSummary logs counts and the first LogCycles cycles.
func (a *Analyzer) logSummary(build *graph.BuildResult, cycles *graph.CycleResult) {
	stats := build.Stats
	a.logger.Info("dependency graph built",
		slog.Int("files", stats.FilesProcessed),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("nodes", build.Graph.NodeCount()),
		slog.Int("edges", build.Graph.EdgeCount()),
		slog.Int("discarded_edges", stats.DiscardedEdges),
		slog.Int("collapsed_symbols", stats.NodesCollapsed),
		slog.Duration("build_time", time.Duration(stats.DurationMicro)*time.Microsecond),
	)

	attrs := []any{
		slog.Int("cycles", len(cycles.Cycles)),
		slog.Bool("truncated", cycles.Truncated),
		slog.Duration("detect_time", time.Duration(cycles.DurationMicro)*time.Microsecond),
	}
	if cycles.Truncated {
		attrs = append(attrs, slog.String("reason", string(cycles.Reason)))
	}
	a.logger.Info("cycle detection finished", attrs...)

	limit := a.cfg.LogCycles
	if limit > len(cycles.Cycles) {
		limit = len(cycles.Cycles)
	}
	for i := 0; i < limit; i++ {
		a.logger.Info("cycle",
			slog.Int("index", i+1),
			slog.Int("length", len(cycles.Cycles[i])),
			slog.String("path", formatCycle(cycles.Cycles[i])),
		)
	}
	if rest := len(cycles.Cycles) - limit; rest > 0 {
		a.logger.Info("more cycles not logged", slog.Int("count", rest))
	}
}

// formatCycle renders a cycle closed on its first element: A -> B -> A.
func formatCycle(c graph.Cycle) string {
	if len(c) == 0 {
		return ""
	}
	return strings.Join(c, " -> ") + " -> " + c[0]
}
