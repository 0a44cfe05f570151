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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/AleutianAI/typegraph/pkg/logging"
	"github.com/AleutianAI/typegraph/services/typegraph/config"
	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// errCyclesFound makes the process exit with status 2.
var errCyclesFound = errors.New("dependency cycles found")

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string

	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "typegraph",
		Short: "Swift type dependency grapher",
		Long: `typegraph extracts class, struct, enum and protocol declarations from
Swift sources, builds a type dependency graph, and reports circular
dependencies with suggestions for breaking them.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initLogger(cmd, a.logLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .json or .jsonc)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config, else info)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "write JSON logs to stderr")
	root.PersistentFlags().StringVar(&a.logDir, "log-dir", "", "also write daily JSON log files to this directory")

	root.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newSnapshotsCmd(a),
		newVersionCmd(),
	)
	return root
}

// initLogger (re)builds the process logger and installs it as the slog
// default.
func (a *app) initLogger(cmd *cobra.Command, levelName string) error {
	level, ok := logging.ParseLevel(levelName)
	if !ok {
		return fmt.Errorf("invalid log level %q", levelName)
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  a.logDir,
		Service: "typegraph",
		JSON:    a.logJSON,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Close()
	}
	a.logger = logger
	slog.SetDefault(logger.Slog())
	return nil
}

// loadConfig reads --config, or the defaults when it is unset, and points it
// at projectDir when one is given. The config's log level applies unless
// --log-level was passed.
func (a *app) loadConfig(cmd *cobra.Command, projectDir string) (*config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.ReadFile(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if projectDir != "" {
		cfg.ProjectDirectory = projectDir
	}
	if cfg.ProjectDirectory == "" {
		cfg.ProjectDirectory = "."
	}
	abs, err := filepath.Abs(cfg.ProjectDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}
	cfg.ProjectDirectory = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if err := a.initLogger(cmd, cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	slog.Debug("typegraph config loaded",
		slog.String("source", a.configPath),
		slog.String("project_directory", cfg.ProjectDirectory),
		slog.Int("max_cycles", cfg.MaxCycles),
		slog.Duration("cycle_timeout", cfg.CycleTimeoutDuration()),
	)
	return cfg, nil
}

// openSnapshots opens a BadgerDB directory and a SnapshotManager over it.
// The caller closes the returned DB.
func openSnapshots(path string, logger *slog.Logger) (*badger.DB, *graph.SnapshotManager, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot db %s: %w", path, err)
	}
	mgr, err := graph.NewSnapshotManager(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, mgr, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the typegraph version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "typegraph %s\n", version)
		},
	}
}
