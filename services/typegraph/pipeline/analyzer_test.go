// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/typegraph/services/typegraph/config"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectDirectory = root
	cfg.Workers = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeSources(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, src := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestNewAnalyzer_NilArgs(t *testing.T) {
	_, err := NewAnalyzer(nil, discardLogger())
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = NewAnalyzer(config.Default(), nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestAnalyzer_Run_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{
		"Sources/A.swift": `
class A: UIView {
    var b: B?
}
`,
		"Sources/B.swift": `
struct B {
    let a: A
    let c: [C]
}
`,
		"Sources/C.swift": `
enum C {
    case one
}
`,
		"Pods/Lib/Lib.swift": "class Hidden {}\n",
		"README.md":          "not swift",
	})

	a, err := NewAnalyzer(testConfig(t, root), discardLogger())
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Sources/A.swift", "Sources/B.swift", "Sources/C.swift"}, res.Walk.Files)
	assert.Equal(t, []string{"A", "B", "C"}, res.Graph.Names())

	require.Len(t, res.Cycles.Cycles, 1)
	assert.Equal(t, graph.Cycle{"A", "B"}, res.Cycles.Cycles[0])
	assert.False(t, res.Cycles.Truncated)

	assert.Equal(t, []string{"To B: " + graph.AdviceUsage}, res.Suggestions["A"])
	assert.Equal(t, []string{"To A: " + graph.AdviceUsage}, res.Suggestions["B"])

	r := res.Report
	require.NotNil(t, r)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, 1, r.Cycles.CycleCountFound)
	assert.Equal(t, 1, r.Diagnostics.DiscardedEdges, "A: UIView is external")
	assert.Equal(t, 3, r.Summary.FilesScanned)
}

func TestAnalyzer_Run_ReadErrorsAreRecorded(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{
		"A.swift": "struct A { let b: B }\n",
		"B.swift": "struct B {}\n",
	})

	read := func(path string) ([]byte, error) {
		if strings.HasSuffix(path, "B.swift") {
			return nil, fmt.Errorf("open %s: %w", path, fs.ErrPermission)
		}
		return os.ReadFile(path)
	}
	a, err := NewAnalyzer(testConfig(t, root), discardLogger(), withReadFile(read))
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Build.FileErrors, 1)
	assert.Equal(t, "B.swift", res.Build.FileErrors[0].FilePath)
	assert.ErrorIs(t, res.Build.FileErrors[0].Err, fs.ErrPermission)
	assert.Equal(t, []string{"A"}, res.Graph.Names())
	assert.Equal(t, 1, res.Build.Stats.DiscardedEdges, "A -> B has no node")
}

func TestAnalyzer_Run_MissingRoot(t *testing.T) {
	a, err := NewAnalyzer(testConfig(t, filepath.Join(t.TempDir(), "missing")), discardLogger())
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzer_Run_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"A.swift": "struct A {}\n"})

	a, err := NewAnalyzer(testConfig(t, root), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzer_Run_EmptyProject(t *testing.T) {
	a, err := NewAnalyzer(testConfig(t, t.TempDir()), discardLogger())
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Graph.NodeCount())
	assert.Empty(t, res.Cycles.Cycles)
	assert.NotNil(t, res.Report.Nodes)
	assert.NotNil(t, res.Suggestions)
}

func TestAnalyzer_Run_Deterministic(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 30; i++ {
		next := (i + 1) % 30
		files[fmt.Sprintf("T%02d.swift", i)] = fmt.Sprintf("class T%02d { var n: T%02d? }\n", i, next)
	}
	writeSources(t, root, files)

	cfg := testConfig(t, root)
	cfg.Workers = 8
	a, err := NewAnalyzer(cfg, discardLogger())
	require.NoError(t, err)

	first, err := a.Run(context.Background())
	require.NoError(t, err)
	second, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Report.GraphHash, second.Report.GraphHash)
	assert.Equal(t, first.Cycles.Cycles, second.Cycles.Cycles)
	require.Len(t, first.Cycles.Cycles, 1)
	assert.Len(t, first.Cycles.Cycles[0], 30)
	assert.NotEqual(t, first.Report.RunID, second.Report.RunID)
}

func TestAnalyzer_LogsFirstCycles(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := testConfig(t, t.TempDir())
	cfg.LogCycles = 1
	a, err := NewAnalyzer(cfg, logger)
	require.NoError(t, err)

	_, err = a.AnalyzeSources(context.Background(), "/mem", map[string][]byte{
		"a.swift": []byte("class A { var b: B? }\nclass B { var a: A? }\n"),
		"c.swift": []byte("class C { var d: D? }\nclass D { var c: C? }\n"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `path="A -> B -> A"`)
	assert.NotContains(t, out, `path="C -> D -> C"`)
	assert.Contains(t, out, "more cycles not logged")
}

func TestAnalyzer_AnalyzeSources(t *testing.T) {
	var phases []graph.ProgressPhase
	a, err := NewAnalyzer(testConfig(t, t.TempDir()), discardLogger(), WithProgress(func(p graph.BuildProgress) {
		phases = append(phases, p.Phase)
	}))
	require.NoError(t, err)

	res, err := a.AnalyzeSources(context.Background(), "/mem", map[string][]byte{
		"Shape.swift": []byte("protocol Shape {}\nstruct Square: Shape {}\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Shape", "Square"}, res.Graph.Names())
	assert.Equal(t, 1, res.Graph.EdgeCount())
	assert.Equal(t, "/mem", res.Report.ProjectRoot)
	assert.Contains(t, phases, graph.ProgressPhaseFinalizing)
}

func TestFormatCycle(t *testing.T) {
	assert.Equal(t, "A -> A", formatCycle(graph.Cycle{"A"}))
	assert.Equal(t, "A -> B -> C -> A", formatCycle(graph.Cycle{"A", "B", "C"}))
	assert.Equal(t, "", formatCycle(nil))
}
