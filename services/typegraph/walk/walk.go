// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package walk discovers the source files an analysis run reads.
//
// Files are returned as slash-separated paths relative to the root, sorted
// so that later stages see them in a stable order.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Sentinel errors.
var (
	ErrEmptyRoot    = errors.New("walk root is empty")
	ErrRootNotDir   = errors.New("walk root is not a directory")
	ErrBadExtension = errors.New("file extension must start with a dot")
)

// Options configures discovery.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Extension is the suffix a file needs to be included, e.g. ".swift".
	// Compared case-sensitively.
	Extension string

	// ExcludedDirs are directory base names pruned wherever they appear.
	ExcludedDirs []string

	// ExcludeGlobs are doublestar patterns matched against root-relative
	// slash paths. A matching directory is pruned.
	ExcludeGlobs []string

	// RespectGitignore applies <Root>/.gitignore when present.
	RespectGitignore bool

	// IncludeTests keeps files IsTestFile reports as tests.
	IncludeTests bool

	// MaxFileBytes skips larger files. Zero disables the limit.
	MaxFileBytes int64

	// Logger receives skip decisions at debug level. Nil uses slog.Default.
	Logger *slog.Logger
}

// Stats counts what discovery looked at.
type Stats struct {
	Matched      int
	SkippedDirs  int
	SkippedGlob  int
	SkippedIgn   int
	SkippedTests int
	SkippedSize  int
	Overridden   int
}

// Result is the outcome of a walk.
type Result struct {
	// Root is the absolute, cleaned root.
	Root string

	// Files are root-relative slash paths in lexical order.
	Files []string

	Stats Stats
}

// Abs returns the absolute path of a root-relative file from Files.
func (r *Result) Abs(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// Files walks opts.Root and returns every matching source file.
//
// Description:
//
//	Directories named in ExcludedDirs or matched by ExcludeGlobs are
//	pruned. A project override file at the root can exclude further
//	prefixes or force prefixes back in. Symlinked directories are not
//	followed. Unreadable entries below the root are logged and skipped.
//
// Inputs:
//
//	ctx - Checked between entries; cancellation stops the walk.
//	opts - Discovery settings. Root and Extension are required.
//
// Outputs:
//
//	*Result - Matching files and counters.
//	error - Non-nil if the root is unusable, the override file is invalid,
//	  or ctx was cancelled.
//
// Thread Safety: Safe for concurrent use (no shared state).
func Files(ctx context.Context, opts Options) (*Result, error) {
	if opts.Root == "" {
		return nil, ErrEmptyRoot
	}
	if !strings.HasPrefix(opts.Extension, ".") {
		return nil, fmt.Errorf("%w: %q", ErrBadExtension, opts.Extension)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	project, err := LoadProjectConfig(root)
	if err != nil {
		return nil, err
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi, err = loadGitignore(root)
		if err != nil {
			return nil, err
		}
	}

	excluded := make(map[string]struct{}, len(opts.ExcludedDirs))
	for _, d := range opts.ExcludedDirs {
		excluded[d] = struct{}{}
	}

	res := &Result{Root: root}
	var pruned []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("walk: skipping unreadable entry",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			dirRel := rel + "/"
			if project.covers(dirRel) {
				return nil
			}
			var skipped *int
			switch {
			case isExcludedDir(excluded, d.Name()):
				skipped = &res.Stats.SkippedDirs
			case matchesAny(opts.ExcludeGlobs, rel) || project.exclude(dirRel):
				skipped = &res.Stats.SkippedGlob
			case gi != nil && gi.MatchesPath(dirRel):
				skipped = &res.Stats.SkippedIgn
			case hasAnyPrefix(pruned, dirRel):
				if project.leadsTo(dirRel) {
					return nil
				}
				return filepath.SkipDir
			default:
				return nil
			}
			if project.leadsTo(dirRel) {
				// Descend only far enough to reach the override.
				pruned = append(pruned, dirRel)
				return nil
			}
			*skipped++
			return filepath.SkipDir
		}

		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), opts.Extension) {
			return nil
		}

		switch {
		case project.covers(rel):
			res.Stats.Overridden++
		case hasAnyPrefix(pruned, rel):
			return nil
		case matchesAny(opts.ExcludeGlobs, rel) || project.exclude(rel):
			res.Stats.SkippedGlob++
			return nil
		case gi != nil && gi.MatchesPath(rel):
			res.Stats.SkippedIgn++
			return nil
		case !opts.IncludeTests && IsTestFile(rel):
			res.Stats.SkippedTests++
			return nil
		}

		if opts.MaxFileBytes > 0 {
			fi, err := d.Info()
			if err != nil {
				logger.Warn("walk: stat failed", slog.String("path", rel), slog.String("error", err.Error()))
				return nil
			}
			if fi.Size() > opts.MaxFileBytes {
				logger.Debug("walk: file too large",
					slog.String("path", rel),
					slog.Int64("size", fi.Size()),
					slog.Int64("limit", opts.MaxFileBytes))
				res.Stats.SkippedSize++
				return nil
			}
		}

		res.Files = append(res.Files, rel)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	sort.Strings(res.Files)
	res.Stats.Matched = len(res.Files)

	logger.Debug("walk complete",
		slog.String("root", root),
		slog.Int("matched", res.Stats.Matched),
		slog.Int("skipped_dirs", res.Stats.SkippedDirs),
		slog.Int("skipped_glob", res.Stats.SkippedGlob),
		slog.Int("skipped_gitignore", res.Stats.SkippedIgn),
		slog.Int("skipped_tests", res.Stats.SkippedTests),
		slog.Int("skipped_size", res.Stats.SkippedSize),
	)
	return res, nil
}

// MatchesAnyGlob reports whether the slash path matches one of the
// doublestar patterns. Invalid patterns never match.
func MatchesAnyGlob(globs []string, path string) bool {
	return matchesAny(globs, filepath.ToSlash(path))
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func isExcludedDir(excluded map[string]struct{}, name string) bool {
	_, ok := excluded[name]
	return ok
}

func loadGitignore(root string) (*ignore.GitIgnore, error) {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}
	return gi, nil
}
