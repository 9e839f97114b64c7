// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package topology

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// lscpu -p column positions.
const (
	lscpuCPUColumn  = 0
	lscpuCoreColumn = 1
)

// ParseLscpu reads the parsable output of `lscpu -p`:
//
//	# CPU,Core,Socket,Node,,L1d,L1i,L2,L3
//	0,0,0,0,,0,0,0,0
//	1,1,0,0,,1,1,1,0
//
// Any line containing '#' is a comment.
func ParseLscpu(r io.Reader) (Topology, error) {
	var cpus []LogicalCPU

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, "#") {
			continue
		}

		cols := strings.Split(line, ",")
		if len(cols) <= lscpuCoreColumn {
			return Topology{}, fmt.Errorf("line %d: expected at least %d columns, got %d", lineNum, lscpuCoreColumn+1, len(cols))
		}

		id, err := strconv.Atoi(strings.TrimSpace(cols[lscpuCPUColumn]))
		if err != nil {
			return Topology{}, fmt.Errorf("line %d: invalid CPU column: %w", lineNum, err)
		}
		core, err := strconv.Atoi(strings.TrimSpace(cols[lscpuCoreColumn]))
		if err != nil {
			return Topology{}, fmt.Errorf("line %d: invalid Core column: %w", lineNum, err)
		}
		cpus = append(cpus, LogicalCPU{ID: id, Core: core})
	}
	if err := scanner.Err(); err != nil {
		return Topology{}, fmt.Errorf("failed to read lscpu output: %w", err)
	}

	return New(cpus...)
}
