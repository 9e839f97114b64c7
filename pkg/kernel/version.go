// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package kernel provides utilities for kernel version detection and the
// kernel settings that govern perf.
package kernel

import (
	"fmt"
	"regexp"
	"strconv"
)

var releaseExpr = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`)

// Version represents a parsed kernel release
type Version struct {
	Major   int    `yaml:"major"`
	Minor   int    `yaml:"minor"`
	Patch   int    `yaml:"patch"`
	Release string `yaml:"release"` // Original release string, e.g. "6.8.0-45-generic"
}

// ParseRelease parses a kernel release as reported by uname -r. Anything
// after the numeric prefix is kept in Release only.
func ParseRelease(release string) (Version, error) {
	m := releaseExpr.FindStringSubmatch(release)
	if m == nil {
		return Version{}, fmt.Errorf("invalid kernel release: %q", release)
	}

	v := Version{Release: release}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
