// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package testutil provides utilities for testing, with a focus on integration test helpers.
package testutil

import (
	"os/exec"
	"runtime"
	"testing"

	"github.com/antimetal/perfbench/pkg/topology"
)

// RequireLinux skips the test if not running on Linux.
func RequireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("Test requires Linux")
	}
}

// RequireTools skips the test unless every named executable is on PATH.
func RequireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("Test requires %s: %v", tool, err)
		}
	}
}

// RequirePinnable skips the test if the process may not run on every CPU
// of set, as happens in containers with a restricted cpuset.
func RequirePinnable(t *testing.T, set topology.CoreSet) {
	t.Helper()
	if err := topology.CheckAllowed(set); err != nil {
		t.Skipf("Test requires CPUs %s: %v", set, err)
	}
}
