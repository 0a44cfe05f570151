// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/config"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/AleutianAI/typegraph/services/typegraph/pipeline"
	"github.com/AleutianAI/typegraph/services/typegraph/report"
	"github.com/AleutianAI/typegraph/services/typegraph/telemetry"
	"github.com/AleutianAI/typegraph/services/typegraph/watch"
	"github.com/spf13/cobra"
)

// analyzeFlags hold flag values for the analyze command.
type analyzeFlags struct {
	output       string
	maxCycles    int
	cycleTimeout string
	workers      int
	includeTests bool
	sqlitePath   string
	snapshotDB   string
	label        string
	metricsFile  string
	traceExport  string
	summary      bool
	color        string
	failOnCycles bool
	watch        bool
	debounce     time.Duration
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze [project-dir]",
		Short: "Build the type dependency graph and report cycles",
		Long: `Analyze walks the project directory, extracts type declarations and
dependencies, detects cycles and writes a JSON report.

The report goes to --output (or output_file in the config), or stdout when
neither is set. A human-readable summary is printed to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return a.runAnalyze(cmd, dir, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "write the JSON report to this file")
	fl.IntVar(&f.maxCycles, "max-cycles", 0, "cap on reported cycles (default from config)")
	fl.StringVar(&f.cycleTimeout, "cycle-timeout", "", "cycle detection timeout, e.g. 10s (default from config)")
	fl.IntVar(&f.workers, "workers", -1, "extraction workers, 0 for one per CPU (default from config)")
	fl.BoolVar(&f.includeTests, "include-tests", false, "analyse test files too")
	fl.StringVar(&f.sqlitePath, "sqlite", "", "also write the report to this SQLite database")
	fl.StringVar(&f.snapshotDB, "snapshot-db", "", "save a snapshot to this BadgerDB directory")
	fl.StringVar(&f.label, "label", "", "label for the saved snapshot")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each run")
	fl.StringVar(&f.traceExport, "trace", "", "trace exporter: none, stdout, otlp (default $OTEL_TRACES_EXPORTER)")
	fl.BoolVar(&f.summary, "summary", true, "print a summary to stderr")
	fl.StringVar(&f.color, "color", "auto", "summary colour: auto, always, never")
	fl.BoolVar(&f.failOnCycles, "fail-on-cycles", false, "exit with status 2 when cycles are found")
	fl.BoolVarP(&f.watch, "watch", "w", false, "re-run when sources change")
	fl.DurationVar(&f.debounce, "debounce", watch.DefaultDebounce, "quiet period before a watch re-run")

	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, dir string, f *analyzeFlags) error {
	cfg, err := a.loadConfig(cmd, dir)
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd, cfg, f); err != nil {
		return err
	}
	logger := a.logger.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = version
	telCfg.Output = cmd.ErrOrStderr()
	if f.traceExport != "" {
		telCfg.TraceExporter = f.traceExport
	}
	if f.metricsFile != "" {
		telCfg.MetricExporter = telemetry.ExporterPrometheus
	}
	tel, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	run := &analyzeRun{
		cfg:    cfg,
		flags:  f,
		tel:    tel,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}

	if f.snapshotDB == "" {
		f.snapshotDB = cfg.SnapshotDB
	}
	if f.snapshotDB != "" {
		db, mgr, err := openSnapshots(f.snapshotDB, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		run.snapshots = mgr
	}

	analyzer, err := pipeline.NewAnalyzer(cfg, logger)
	if err != nil {
		return err
	}
	run.analyzer = analyzer

	cyclesFound, err := run.once(ctx)
	if err != nil {
		return err
	}
	if !f.watch {
		if cyclesFound && f.failOnCycles {
			return errCyclesFound
		}
		return nil
	}

	w, err := watch.New(cfg.ProjectDirectory, watch.Options{
		Debounce:     f.debounce,
		Extension:    cfg.FileExtension,
		ExcludedDirs: cfg.ExcludedDirectories,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching for changes",
		slog.String("project_directory", cfg.ProjectDirectory),
		slog.Int("directories", w.WatchedDirs()),
	)
	return w.Run(ctx, func(ctx context.Context, changes []watch.Change) error {
		logger.Info("sources changed, re-analysing", slog.Int("changes", len(changes)))
		_, err := run.once(ctx)
		return err
	})
}

// applyAnalyzeFlags copies explicitly set flags over the config and
// revalidates it.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, f *analyzeFlags) error {
	fl := cmd.Flags()
	if fl.Changed("max-cycles") {
		cfg.MaxCycles = f.maxCycles
	}
	if fl.Changed("cycle-timeout") {
		cfg.CycleTimeout = f.cycleTimeout
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("include-tests") {
		cfg.IncludeTests = f.includeTests
	}
	if f.output == "" {
		f.output = cfg.OutputFile
	}
	if f.sqlitePath == "" {
		f.sqlitePath = cfg.SQLiteOutput
	}
	switch f.color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid --color %q: want auto, always or never", f.color)
	}
	return cfg.Validate()
}

// analyzeRun performs one analysis and writes every configured output.
type analyzeRun struct {
	cfg       *config.Config
	flags     *analyzeFlags
	analyzer  *pipeline.Analyzer
	snapshots *graph.SnapshotManager
	tel       *telemetry.Telemetry
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

// once runs the analysis and reports whether any cycle was found.
func (r *analyzeRun) once(ctx context.Context) (bool, error) {
	res, err := r.analyzer.Run(ctx)
	if err != nil {
		return false, fmt.Errorf("analysis failed: %w", err)
	}
	rep := res.Report

	if r.flags.output != "" {
		if err := report.WriteFile(r.flags.output, rep); err != nil {
			return false, err
		}
		r.logger.Info("report written", slog.String("path", r.flags.output))
	} else if err := report.WriteJSON(r.stdout, rep); err != nil {
		return false, err
	}

	if r.flags.sqlitePath != "" {
		if err := r.writeSQLite(ctx, rep); err != nil {
			return false, err
		}
	}

	if r.snapshots != nil {
		r.logChangesSinceLatest(ctx, rep)
		meta, err := r.snapshots.Save(ctx, rep, r.flags.label)
		if err != nil {
			return false, err
		}
		r.logger.Info("snapshot saved",
			slog.String("snapshot_id", meta.SnapshotID),
			slog.String("label", meta.Label),
		)
	}

	if r.flags.metricsFile != "" {
		if err := r.tel.WriteMetricsFile(r.flags.metricsFile); err != nil {
			return false, err
		}
	}

	if r.flags.summary {
		opts := report.SummaryOptions{Color: r.colorEnabled()}
		if err := report.WriteSummary(r.stderr, rep, opts); err != nil {
			return false, err
		}
	}

	return len(rep.Cycles.Items) > 0, nil
}

// logChangesSinceLatest compares rep with the newest saved snapshot of the
// same project. A missing or unreadable snapshot is not an error.
func (r *analyzeRun) logChangesSinceLatest(ctx context.Context, rep *graph.Report) {
	prev, meta, err := r.snapshots.LoadLatest(ctx, graph.ProjectHash(rep.ProjectRoot))
	if err != nil {
		if !errors.Is(err, graph.ErrSnapshotNotFound) {
			r.logger.Warn("could not load previous snapshot", slog.String("error", err.Error()))
		}
		return
	}
	diff, err := graph.DiffSnapshots(prev, rep, meta.SnapshotID, "")
	if err != nil {
		r.logger.Warn("could not diff against previous snapshot", slog.String("error", err.Error()))
		return
	}
	r.logger.Info("changes since previous snapshot",
		slog.String("base_snapshot_id", meta.SnapshotID),
		slog.Int("total_changes", diff.Summary.TotalChanges),
		slog.Int("cycles_introduced", len(diff.CyclesIntroduced)),
		slog.Int("cycles_resolved", len(diff.CyclesResolved)),
	)
}

func (r *analyzeRun) writeSQLite(ctx context.Context, rep *graph.Report) error {
	w, err := report.OpenSQLite(ctx, r.flags.sqlitePath)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Write(ctx, rep); err != nil {
		return err
	}
	r.logger.Info("report stored", slog.String("sqlite", r.flags.sqlitePath))
	return nil
}

func (r *analyzeRun) colorEnabled() bool {
	switch r.flags.color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := r.stderr.(*os.File)
	if !ok {
		return false
	}
	return report.ColorEnabled(f)
}
