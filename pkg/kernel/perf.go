// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxUnprivilegedParanoid is the highest perf_event_paranoid level at which
// an unprivileged user can still sample their own processes. Levels above
// it (Debian's 3 and up) refuse unprivileged perf entirely.
const MaxUnprivilegedParanoid = 2

// PerfEventParanoid reads kernel.perf_event_paranoid from the proc tree
// rooted at procPath.
func PerfEventParanoid(procPath string) (int, error) {
	path := filepath.Join(procPath, "sys/kernel/perf_event_paranoid")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read perf_event_paranoid: %w", err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid perf_event_paranoid %q: %w", strings.TrimSpace(string(data)), err)
	}
	return level, nil
}

// UnprivilegedProfilingAllowed reports whether level lets a user without
// CAP_PERFMON run `perf record` on their own program.
func UnprivilegedProfilingAllowed(level int) bool {
	return level <= MaxUnprivilegedParanoid
}
