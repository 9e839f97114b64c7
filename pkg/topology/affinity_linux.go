// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package topology

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckAllowed reports ErrCPUNotAllowed if any CPU in set is outside this
// process's scheduler affinity mask. taskset would refuse such a set, so
// this catches it before the first benchmark launch.
func CheckAllowed(set CoreSet) error {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return fmt.Errorf("failed to read scheduler affinity: %w", err)
	}
	for _, id := range set.CPUs {
		if !mask.IsSet(id) {
			return fmt.Errorf("%w: cpu %d (%d CPUs allowed)", ErrCPUNotAllowed, id, mask.Count())
		}
	}
	return nil
}
