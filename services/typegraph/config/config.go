// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates analysis settings.
//
// Settings come from an embedded defaults file with a user file applied on
// top. YAML files are decoded with yaml.v3; files ending in .json or .jsonc
// may carry comments and trailing commas.
package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/extract"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/go-playground/validator/v10"
	"github.com/muhammadmuzzammil1998/jsonc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var tracer = otel.Tracer("typegraph.config")

// MaxConfigFileSize bounds config input to prevent runaway reads.
const MaxConfigFileSize = 1 << 20

// Format selects the decoder for config data.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Sentinel errors.
var (
	ErrEmptyConfig        = errors.New("config data is empty")
	ErrConfigTooLarge     = errors.New("config data exceeds maximum size")
	ErrUnsupportedFormat  = errors.New("unsupported config format")
	ErrInvalidConfig      = errors.New("invalid config")
	ErrMissingProjectRoot = errors.New("project_directory is required")
)

// Config holds every analysis setting.
type Config struct {
	ProjectDirectory    string   `yaml:"project_directory" json:"project_directory" validate:"required"`
	ExcludedDirectories []string `yaml:"excluded_directories" json:"excluded_directories" validate:"dive,required"`
	ExcludeGlobs        []string `yaml:"exclude_globs" json:"exclude_globs" validate:"dive,required"`
	OutputFile          string   `yaml:"output_file" json:"output_file"`
	FileExtension       string   `yaml:"file_extension" json:"file_extension" validate:"required,startswith=."`
	RespectGitignore    bool     `yaml:"respect_gitignore" json:"respect_gitignore"`
	IncludeTests        bool     `yaml:"include_tests" json:"include_tests"`
	Workers             int      `yaml:"workers" json:"workers" validate:"gte=0,lte=256"`
	MaxCycles           int      `yaml:"max_cycles" json:"max_cycles" validate:"gt=0"`
	CycleTimeout        string   `yaml:"cycle_timeout" json:"cycle_timeout" validate:"required"`
	LogCycles           int      `yaml:"log_cycles" json:"log_cycles" validate:"gte=0"`
	NamespaceDenylist   []string `yaml:"namespace_denylist" json:"namespace_denylist" validate:"dive,required"`
	PrimitiveTypes      []string `yaml:"primitive_types" json:"primitive_types" validate:"dive,required"`
	IgnoredTypes        []string `yaml:"ignored_types" json:"ignored_types" validate:"dive,required"`
	MaxFileBytes        int64    `yaml:"max_file_bytes" json:"max_file_bytes" validate:"gte=0"`
	SnapshotDB          string   `yaml:"snapshot_db" json:"snapshot_db"`
	SQLiteOutput        string   `yaml:"sqlite_output" json:"sqlite_output"`
	LogLevel            string   `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	cycleTimeout time.Duration
}

var validate = validator.New()

// Default returns the embedded defaults without validation. The project
// directory is empty and must be set before Validate succeeds.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return &cfg
}

// Load reads a config file and applies it over the defaults.
//
// Description:
//
//	The format is chosen by extension: .json and .jsonc use the JSON
//	decoder, anything else YAML. A relative project_directory is resolved
//	against the directory containing the file.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	path - Path to the config file.
//
// Outputs:
//
//	*Config - The validated config.
//	error - Non-nil if the file cannot be read, decoded or validated.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := finish(ctx, cfg, path); err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}
	return cfg, nil
}

// ReadFile reads and decodes a config file over the defaults without
// validating it. Callers that override fields afterwards must call Validate.
func ReadFile(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%s: %w (%d > %d)", path, ErrConfigTooLarge, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.ProjectDirectory != "" && !filepath.IsAbs(cfg.ProjectDirectory) {
		cfg.ProjectDirectory = filepath.Join(filepath.Dir(path), cfg.ProjectDirectory)
	}
	return cfg, nil
}

// Parse decodes config data in the given format over the defaults and
// validates the result.
func Parse(ctx context.Context, data []byte, format Format) (*Config, error) {
	cfg, err := decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	if err := finish(ctx, cfg, "<inline>"); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	return cfg, nil
}

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatYAML
	}
}

func decode(data []byte, format Format) (*Config, error) {
	if len(data) == 0 {
		return nil, ErrEmptyConfig
	}
	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("%w (%d > %d)", ErrConfigTooLarge, len(data), MaxConfigFileSize)
	}

	cfg := Default()
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return cfg, nil
}

// finish validates cfg and records what was loaded.
func finish(ctx context.Context, cfg *Config, source string) error {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()

	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("config.source", source),
		attribute.String("config.project_directory", cfg.ProjectDirectory),
		attribute.Int("config.max_cycles", cfg.MaxCycles),
		attribute.String("config.cycle_timeout", cfg.cycleTimeout.String()),
		attribute.Int("config.workers", cfg.WorkerCount()),
	)

	slog.Info("typegraph config loaded",
		slog.String("source", source),
		slog.String("project_directory", cfg.ProjectDirectory),
		slog.Int("excluded_directories", len(cfg.ExcludedDirectories)),
		slog.Int("max_cycles", cfg.MaxCycles),
		slog.Duration("cycle_timeout", cfg.cycleTimeout),
	)
	return nil
}

// Validate checks every field and caches the parsed cycle timeout.
func (c *Config) Validate() error {
	if c.ProjectDirectory == "" {
		return ErrMissingProjectRoot
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	d, err := time.ParseDuration(c.CycleTimeout)
	if err != nil {
		return fmt.Errorf("%w: cycle_timeout: %v", ErrInvalidConfig, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: cycle_timeout must be positive, got %s", ErrInvalidConfig, c.CycleTimeout)
	}
	c.cycleTimeout = d
	return nil
}

// CycleTimeoutDuration returns the parsed cycle timeout, falling back to
// graph.DefaultCycleTimeout before Validate has run.
func (c *Config) CycleTimeoutDuration() time.Duration {
	if c.cycleTimeout > 0 {
		return c.cycleTimeout
	}
	if d, err := time.ParseDuration(c.CycleTimeout); err == nil && d > 0 {
		return d
	}
	return graph.DefaultCycleTimeout
}

// WorkerCount returns the extraction pool size.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// DetectorOptions returns the cycle detection bounds.
func (c *Config) DetectorOptions() graph.DetectorOptions {
	return graph.DetectorOptions{MaxCycles: c.MaxCycles, Timeout: c.CycleTimeoutDuration()}
}

// ExtractorOptions returns extractor settings. Configured primitives and
// ignored types extend the built-in lists; the namespace denylist
// replaces the built-in one.
func (c *Config) ExtractorOptions() extract.Options {
	opts := extract.DefaultOptions()
	opts.NamespaceDenylist = append([]string(nil), c.NamespaceDenylist...)
	opts.PrimitiveTypes = append(opts.PrimitiveTypes, c.PrimitiveTypes...)
	opts.IgnoredTypes = append(opts.IgnoredTypes, c.IgnoredTypes...)
	return opts
}
