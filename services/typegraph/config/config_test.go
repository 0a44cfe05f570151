// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".swift", cfg.FileExtension)
	assert.Equal(t, 1000, cfg.MaxCycles)
	assert.Equal(t, "10s", cfg.CycleTimeout)
	assert.Equal(t, 10, cfg.LogCycles)
	assert.True(t, cfg.RespectGitignore)
	assert.ElementsMatch(t, []string{".build", ".swiftpm", "Pods", "Carthage", "DerivedData", ".git"}, cfg.ExcludedDirectories)
	assert.Equal(t, []string{"UIKit.", "Foundation."}, cfg.NamespaceDenylist)
	assert.Empty(t, cfg.ProjectDirectory)
}

func TestParse_YAMLOverridesDefaults(t *testing.T) {
	data := []byte(`
project_directory: /src/app
max_cycles: 50
cycle_timeout: 250ms
excluded_directories: [Vendor]
primitive_types: [Money]
`)
	cfg, err := Parse(context.Background(), data, FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "/src/app", cfg.ProjectDirectory)
	assert.Equal(t, 50, cfg.MaxCycles)
	assert.Equal(t, 250*time.Millisecond, cfg.CycleTimeoutDuration())
	assert.Equal(t, []string{"Vendor"}, cfg.ExcludedDirectories)
	assert.Equal(t, ".swift", cfg.FileExtension, "unset keys keep defaults")
	assert.Equal(t, 10, cfg.LogCycles)

	det := cfg.DetectorOptions()
	assert.Equal(t, 50, det.MaxCycles)
	assert.Equal(t, 250*time.Millisecond, det.Timeout)
}

func TestParse_JSONCWithComments(t *testing.T) {
	data := []byte(`{
  // where the sources live
  "project_directory": "/src/app",
  "workers": 3,
  /* block comments too */
  "include_tests": false
}`)
	cfg, err := Parse(context.Background(), data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "/src/app", cfg.ProjectDirectory)
	assert.Equal(t, 3, cfg.WorkerCount())
	assert.False(t, cfg.IncludeTests)
	assert.Equal(t, 1000, cfg.MaxCycles)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "", ErrEmptyConfig},
		{"missing project", "max_cycles: 5\n", ErrMissingProjectRoot},
		{"zero max cycles", "project_directory: /p\nmax_cycles: 0\n", ErrInvalidConfig},
		{"bad timeout", "project_directory: /p\ncycle_timeout: soon\n", ErrInvalidConfig},
		{"negative timeout", "project_directory: /p\ncycle_timeout: -1s\n", ErrInvalidConfig},
		{"extension without dot", "project_directory: /p\nfile_extension: swift\n", ErrInvalidConfig},
		{"bad log level", "project_directory: /p\nlog_level: loud\n", ErrInvalidConfig},
		{"too many workers", "project_directory: /p\nworkers: 1000\n", ErrInvalidConfig},
		{"blank glob", "project_directory: /p\nexclude_globs: ['']\n", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.data), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	data := []byte("project_directory: /p\n# " + strings.Repeat("x", MaxConfigFileSize) + "\n")
	_, err := Parse(context.Background(), data, FormatYAML)
	assert.ErrorIs(t, err, ErrConfigTooLarge)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse(context.Background(), []byte("x"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_ResolvesRelativeProjectDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_directory: Sources\n"), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Sources"), cfg.ProjectDirectory)
}

func TestLoad_JSONByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typegraph.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"project_directory": "/abs" // root
}`), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "/abs", cfg.ProjectDirectory)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFile_DoesNotValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_cycles: 5\n"), 0o644))

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.ProjectDirectory)
	assert.Equal(t, 5, cfg.MaxCycles)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingProjectRoot)

	_, err = Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrMissingProjectRoot)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("a/b.JSON"))
	assert.Equal(t, FormatJSON, FormatForPath("cfg.jsonc"))
	assert.Equal(t, FormatYAML, FormatForPath("cfg.yml"))
	assert.Equal(t, FormatYAML, FormatForPath("cfg"))
}

func TestConfig_ExtractorOptions(t *testing.T) {
	cfg := Default()
	cfg.PrimitiveTypes = []string{"Money"}
	cfg.IgnoredTypes = []string{"Constants"}
	cfg.NamespaceDenylist = []string{"Vendor."}

	opts := cfg.ExtractorOptions()
	assert.Contains(t, opts.PrimitiveTypes, "Money")
	assert.Contains(t, opts.PrimitiveTypes, "Int", "built-in primitives are kept")
	assert.Contains(t, opts.IgnoredTypes, "Constants")
	assert.Contains(t, opts.IgnoredTypes, "CodingKeys")
	assert.Equal(t, []string{"Vendor."}, opts.NamespaceDenylist)
}

func TestConfig_WorkerCountDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerCount())
}
