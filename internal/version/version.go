// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`    // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"git_commit"` // Short git commit hash
	BuildTime string `json:"build_time"` // RFC3339
}

// String formats the info for the -v flag.
func (i Info) String() string {
	v := i.Version
	if v == "" {
		v = "dev"
	}
	if i.GitCommit == "" {
		return "deptdocs " + v
	}
	return fmt.Sprintf("deptdocs %s (%s, built %s)", v, i.GitCommit, i.BuildTime)
}
