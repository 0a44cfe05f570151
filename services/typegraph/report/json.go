// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report writes analysis reports: schema-checked JSON, a SQLite
// database for ad hoc queries, and a terminal summary.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/report.schema.json
var reportSchemaJSON []byte

const reportSchemaURL = "mem://typegraph/report.schema.json"

// Sentinel errors.
var (
	ErrNilReport     = errors.New("report must not be nil")
	ErrSchemaInvalid = errors.New("report does not match schema")
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// reportSchema compiles the embedded schema once.
func reportSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(reportSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("decode report schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(reportSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("register report schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(reportSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile report schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Schema returns the embedded report JSON Schema.
func Schema() []byte {
	return append([]byte(nil), reportSchemaJSON...)
}

// Validate checks encoded report JSON against the schema.
func Validate(data []byte) error {
	s, err := reportSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

// MarshalJSON encodes r with indentation and validates the result.
func MarshalJSON(r *graph.Report) ([]byte, error) {
	if r == nil {
		return nil, ErrNilReport
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteJSON encodes r to w. Nothing is written if validation fails.
func WriteJSON(w io.Writer, r *graph.Report) error {
	data, err := MarshalJSON(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// WriteFile writes r to path in a single step.
//
// Description:
//
//	The report is encoded and validated in memory, written to a temporary
//	file next to path and renamed over it, so readers never see a partial
//	report.
//
// Outputs:
//
//	error - Non-nil if encoding, validation or any file operation fails.
//	  An existing file at path is left untouched on failure.
func WriteFile(path string, r *graph.Report) error {
	data, err := MarshalJSON(r)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".typegraph-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming report into place: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*graph.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var r graph.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &r, nil
}
