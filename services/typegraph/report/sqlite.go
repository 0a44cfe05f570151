// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	_ "modernc.org/sqlite"
)

const sqliteSchemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// sqliteMigrations are applied in order. Never edit an existing entry.
var sqliteMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    project_root TEXT NOT NULL,
    generated_at_milli INTEGER NOT NULL,
    graph_hash TEXT NOT NULL,
    truncated INTEGER NOT NULL,
    cycle_count_found INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    file TEXT NOT NULL,
    line INTEGER NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS edges (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    kind TEXT NOT NULL,
    PRIMARY KEY (run_id, source, target, kind)
);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(run_id, target);

-- One row per cycle member; position 0 is the smallest name.
CREATE TABLE IF NOT EXISTS cycles (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    cycle_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (run_id, cycle_id, position)
);

CREATE TABLE IF NOT EXISTS suggestions (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    seq INTEGER NOT NULL,
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, name, seq)
);
`,
}

// SQLiteWriter stores reports in a SQLite database. Each report is one run;
// writing the same run ID again replaces it.
//
// Thread Safety: Safe for concurrent use; database/sql serialises access.
type SQLiteWriter struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteWriter{db: db}, nil
}

// Close releases the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

// DB exposes the handle for queries.
func (w *SQLiteWriter) DB() *sql.DB {
	return w.db
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for v := current + 1; v < len(sqliteMigrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, sqliteMigrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v, err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", v, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", v, err)
		}
	}
	return nil
}

// Write stores r in one transaction.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	r - The report. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if any insert fails. The database is unchanged on error.
func (w *SQLiteWriter) Write(ctx context.Context, r *graph.Report) error {
	if r == nil {
		return ErrNilReport
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", r.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, project_root, generated_at_milli, graph_hash, truncated, cycle_count_found) VALUES (?, ?, ?, ?, ?, ?)",
		r.RunID, r.ProjectRoot, r.GeneratedAtMilli, r.GraphHash, r.Cycles.Truncated, r.Cycles.CycleCountFound,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertAll(ctx, tx, "INSERT INTO nodes (run_id, name, kind, file, line) VALUES (?, ?, ?, ?, ?)",
		len(r.Nodes), func(i int) []any {
			n := r.Nodes[i]
			return []any{r.RunID, n.Name, n.Kind.String(), n.File, n.Line}
		}); err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}

	if err := insertAll(ctx, tx, "INSERT INTO edges (run_id, source, target, kind) VALUES (?, ?, ?, ?)",
		len(r.Edges), func(i int) []any {
			e := r.Edges[i]
			return []any{r.RunID, e.Source, e.Target, e.Kind.String()}
		}); err != nil {
		return fmt.Errorf("insert edges: %w", err)
	}

	type member struct {
		cycle, pos int
		name       string
	}
	var members []member
	for ci, c := range r.Cycles.Items {
		for pi, name := range c {
			members = append(members, member{ci, pi, name})
		}
	}
	if err := insertAll(ctx, tx, "INSERT INTO cycles (run_id, cycle_id, position, name) VALUES (?, ?, ?, ?)",
		len(members), func(i int) []any {
			m := members[i]
			return []any{r.RunID, m.cycle, m.pos, m.name}
		}); err != nil {
		return fmt.Errorf("insert cycles: %w", err)
	}

	type advice struct {
		name string
		seq  int
		msg  string
	}
	names := make([]string, 0, len(r.Suggestions))
	for name := range r.Suggestions {
		names = append(names, name)
	}
	sort.Strings(names)
	var advices []advice
	for _, name := range names {
		for seq, msg := range r.Suggestions[name] {
			advices = append(advices, advice{name, seq, msg})
		}
	}
	if err := insertAll(ctx, tx, "INSERT INTO suggestions (run_id, name, seq, message) VALUES (?, ?, ?, ?)",
		len(advices), func(i int) []any {
			a := advices[i]
			return []any{r.RunID, a.name, a.seq, a.msg}
		}); err != nil {
		return fmt.Errorf("insert suggestions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertAll runs one prepared statement n times with args(i).
func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// CycleMembers returns the cycles of a stored run in order.
func (w *SQLiteWriter) CycleMembers(ctx context.Context, runID string) ([][]string, error) {
	rows, err := w.db.QueryContext(ctx,
		"SELECT cycle_id, name FROM cycles WHERE run_id = ? ORDER BY cycle_id, position", runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out [][]string
	last := -1
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if id != last {
			out = append(out, nil)
			last = id
		}
		out[len(out)-1] = append(out[len(out)-1], name)
	}
	return out, rows.Err()
}
