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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/AleutianAI/typegraph/services/typegraph/report"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

// snapshotCtx opens the store named by --snapshot-db for one subcommand.
type snapshotCtx struct {
	a    *app
	path string
}

func (s *snapshotCtx) open(cmd *cobra.Command) (*badger.DB, *graph.SnapshotManager, error) {
	path := s.path
	if path == "" && s.a.configPath != "" {
		cfg, err := s.a.loadConfig(cmd, "")
		if err != nil {
			return nil, nil, err
		}
		path = cfg.SnapshotDB
	}
	if path == "" {
		return nil, nil, errors.New("--snapshot-db is required (or snapshot_db in the config)")
	}
	return openSnapshots(path, s.a.logger.Slog())
}

func newSnapshotsCmd(a *app) *cobra.Command {
	s := &snapshotCtx{a: a}

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List, show, diff and delete saved reports",
	}
	cmd.PersistentFlags().StringVar(&s.path, "snapshot-db", "", "BadgerDB directory for snapshots")

	cmd.AddCommand(
		newSnapshotsListCmd(s),
		newSnapshotsShowCmd(s),
		newSnapshotsDiffCmd(s),
		newSnapshotsDeleteCmd(s),
	)
	return cmd
}

func newSnapshotsListCmd(s *snapshotCtx) *cobra.Command {
	var (
		project string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots for a project, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, err := filepath.Abs(project)
			if err != nil {
				return err
			}
			db, mgr, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			metas, err := mgr.List(cmd.Context(), graph.ProjectHash(abs), limit)
			if err != nil {
				return err
			}
			return writeSnapshotTable(cmd.OutOrStdout(), metas)
		},
	}
	cmd.Flags().StringVar(&project, "project", ".", "project directory the snapshots were taken for")
	cmd.Flags().IntVar(&limit, "limit", graph.DefaultSnapshotListLimit, "maximum snapshots to list")
	return cmd
}

func writeSnapshotTable(w io.Writer, metas []*graph.SnapshotMetadata) error {
	if len(metas) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNODES\tEDGES\tCYCLES\tLABEL")
	for _, m := range metas {
		cycles := fmt.Sprintf("%d", m.CycleCount)
		if m.Truncated {
			cycles += "+"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			m.SnapshotID,
			time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339),
			m.NodeCount, m.EdgeCount, cycles, m.Label)
	}
	return tw.Flush()
}

func newSnapshotsShowCmd(s *snapshotCtx) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "show <snapshot-id>",
		Short: "Print a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, mgr, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rep, _, err := mgr.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if summary {
				return report.WriteSummary(cmd.OutOrStdout(), rep, report.SummaryOptions{})
			}
			return report.WriteJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print the summary instead of JSON")
	return cmd
}

func newSnapshotsDiffCmd(s *snapshotCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <base-id> <target-id>",
		Short: "Compare two saved reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, mgr, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			base, _, err := mgr.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			target, _, err := mgr.Load(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			diff, err := graph.DiffSnapshots(base, target, args[0], args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(diff)
		},
	}
}

func newSnapshotsDeleteCmd(s *snapshotCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, mgr, err := s.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := mgr.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
