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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFile is the per-project override file read from the root.
const ProjectConfigFile = "typegraph.config.yaml"

// ProjectConfig holds per-project discovery overrides.
//
// Description:
//
//	Loaded from <root>/typegraph.config.yaml. All fields are optional.
//	A missing file is not an error. Entries are root-relative slash
//	prefixes; a trailing slash limits a prefix to a directory.
//
// Thread Safety: Safe for concurrent reads after construction.
type ProjectConfig struct {
	// ExcludeFromAnalysis lists prefixes that are never scanned.
	// Example: ["Generated/", "Sources/Legacy/"]
	ExcludeFromAnalysis []string `yaml:"exclude_from_analysis"`

	// IncludeOverride lists prefixes scanned even when an excluded
	// directory name, glob, .gitignore or the test filter would skip them.
	IncludeOverride []string `yaml:"include_override"`
}

// LoadProjectConfig reads typegraph.config.yaml from root.
//
// Outputs:
//
//	ProjectConfig - The parsed overrides, or an empty value if the file is missing.
//	error - Non-nil only if the file exists but cannot be read or parsed.
func LoadProjectConfig(root string) (ProjectConfig, error) {
	if root == "" {
		return ProjectConfig{}, nil
	}

	data, err := os.ReadFile(filepath.Join(root, ProjectConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfig{}, nil
		}
		return ProjectConfig{}, fmt.Errorf("reading %s: %w", ProjectConfigFile, err)
	}

	var pc ProjectConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return ProjectConfig{}, fmt.Errorf("parsing %s: %w", ProjectConfigFile, err)
	}
	return pc, nil
}

func (pc ProjectConfig) exclude(rel string) bool {
	return hasAnyPrefix(pc.ExcludeFromAnalysis, rel)
}

// covers reports whether rel lies inside an include override.
func (pc ProjectConfig) covers(rel string) bool {
	return hasAnyPrefix(pc.IncludeOverride, rel)
}

// leadsTo reports whether the directory dirRel is an ancestor of an
// include override.
func (pc ProjectConfig) leadsTo(dirRel string) bool {
	for _, p := range pc.IncludeOverride {
		if p != "" && strings.HasPrefix(p, dirRel) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(prefixes []string, rel string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}
