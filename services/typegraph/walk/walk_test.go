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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under root. Content defaults to a single struct.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		if content == "" {
			content = "struct S {}\n"
		}
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func baseOptions(root string) Options {
	return Options{
		Root:         root,
		Extension:    ".swift",
		ExcludedDirs: []string{".build", "Pods"},
		IncludeTests: true,
	}
}

func TestFiles_ExtensionAndExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"App/Model.swift":          "",
		"App/View.swift":           "",
		"App/README.md":            "# docs",
		"App/Old.swift.bak":        "",
		"Pods/Alamofire/AF.swift":  "",
		".build/debug/Gen.swift":   "",
		"Sources/Core/Graph.swift": "",
	})

	res, err := Files(context.Background(), baseOptions(root))
	require.NoError(t, err)

	assert.Equal(t, []string{"App/Model.swift", "App/View.swift", "Sources/Core/Graph.swift"}, res.Files)
	assert.Equal(t, 2, res.Stats.SkippedDirs)
	assert.Equal(t, 3, res.Stats.Matched)
	assert.Equal(t, filepath.Join(res.Root, "App", "Model.swift"), res.Abs("App/Model.swift"))
}

func TestFiles_ExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"App/Model.swift":                 "",
		"App/Model.generated.swift":       "",
		"Generated/Deep/Assets.swift":     "",
		"Feature/Generated/Strings.swift": "",
	})

	opts := baseOptions(root)
	opts.ExcludeGlobs = []string{"**/*.generated.swift", "**/Generated"}
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"App/Model.swift"}, res.Files)
	assert.Equal(t, 3, res.Stats.SkippedGlob)
}

func TestFiles_Gitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":         "build/\n*.tmp.swift\n",
		"App/A.swift":        "",
		"App/B.tmp.swift":    "",
		"build/Output.swift": "",
	})

	opts := baseOptions(root)
	opts.RespectGitignore = true
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"App/A.swift"}, res.Files)

	opts.RespectGitignore = false
	res, err = Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
}

func TestFiles_MissingGitignoreIsFine(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"A.swift": ""})

	opts := baseOptions(root)
	opts.RespectGitignore = true
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.swift"}, res.Files)
}

func TestFiles_ExcludeTests(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"App/Model.swift":           "",
		"AppTests/ModelTests.swift": "",
		"Tests/Helpers.swift":       "",
		"App/ViewSpec.swift":        "",
	})

	opts := baseOptions(root)
	opts.IncludeTests = false
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"App/Model.swift"}, res.Files)
	assert.Equal(t, 3, res.Stats.SkippedTests)
}

func TestFiles_MaxFileBytes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Small.swift": "struct A {}\n",
		"Large.swift": "struct B { let a: Int; let b: Int; let c: Int }\n",
	})

	opts := baseOptions(root)
	opts.MaxFileBytes = 20
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Small.swift"}, res.Files)
	assert.Equal(t, 1, res.Stats.SkippedSize)
}

func TestFiles_ProjectConfigOverrides(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		ProjectConfigFile:       "exclude_from_analysis:\n  - Legacy/\ninclude_override:\n  - Pods/Internal/\n",
		"App/A.swift":           "",
		"Legacy/Old.swift":      "",
		"Pods/Internal/K.swift": "",
		"Pods/External/E.swift": "",
	})

	res, err := Files(context.Background(), baseOptions(root))
	require.NoError(t, err)

	assert.Equal(t, []string{"App/A.swift", "Pods/Internal/K.swift"}, res.Files)
	assert.Equal(t, 1, res.Stats.Overridden)
}

func TestFiles_InvalidProjectConfig(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{ProjectConfigFile: "exclude_from_analysis: [unclosed\n"})

	_, err := Files(context.Background(), baseOptions(root))
	assert.Error(t, err)
}

func TestFiles_RootErrors(t *testing.T) {
	_, err := Files(context.Background(), Options{Extension: ".swift"})
	assert.ErrorIs(t, err, ErrEmptyRoot)

	_, err = Files(context.Background(), Options{Root: t.TempDir(), Extension: "swift"})
	assert.ErrorIs(t, err, ErrBadExtension)

	file := filepath.Join(t.TempDir(), "f.swift")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Files(context.Background(), Options{Root: file, Extension: ".swift"})
	assert.ErrorIs(t, err, ErrRootNotDir)

	_, err = Files(context.Background(), Options{Root: filepath.Join(t.TempDir(), "missing"), Extension: ".swift"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFiles_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"A.swift": "", "B.swift": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Files(ctx, baseOptions(root))
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}

func TestFiles_EmptyProject(t *testing.T) {
	res, err := Files(context.Background(), baseOptions(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, res.Files)
}

func TestMatchesAnyGlob(t *testing.T) {
	globs := []string{"", "[", "Sources/**/*.swift"}
	assert.True(t, MatchesAnyGlob(globs, "Sources/a/b/C.swift"))
	assert.False(t, MatchesAnyGlob(globs, "Tests/C.swift"))
}

func TestLoadProjectConfig(t *testing.T) {
	pc, err := LoadProjectConfig("")
	require.NoError(t, err)
	assert.Empty(t, pc.ExcludeFromAnalysis)

	pc, err = LoadProjectConfig(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, pc.IncludeOverride)

	root := t.TempDir()
	writeTree(t, root, map[string]string{ProjectConfigFile: "include_override: [Vendor/Mine/]\n"})
	pc, err = LoadProjectConfig(root)
	require.NoError(t, err)
	assert.True(t, pc.covers("Vendor/Mine/A.swift"))
	assert.True(t, pc.leadsTo("Vendor/"))
	assert.False(t, pc.leadsTo("Other/"))
}
