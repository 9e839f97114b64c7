// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package cpu converts between logical CPU id slices and their textual forms.
package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseList parses a Linux kernel CPU list format string into a slice of CPU IDs.
// The format supports:
//   - Individual CPUs: "0", "1", "2"
//   - Ranges: "0-3" (includes 0, 1, 2, 3)
//   - Comma-separated combinations: "0,2-4,7"
//   - Empty string returns empty slice (not nil)
//
// This format is used in /sys/devices/system/cpu/online and by taskset -c.
// The order of the input is preserved.
//
// Examples:
//   - "0" -> [0]
//   - "0-3" -> [0, 1, 2, 3]
//   - "0,2-4,7" -> [0, 2, 3, 4, 7]
//   - "" -> []
func ParseList(cpuList string) ([]int, error) {
	cpuList = strings.TrimSpace(cpuList)
	if cpuList == "" {
		return []int{}, nil
	}

	cpus := []int{}
	for _, part := range strings.Split(cpuList, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			id, err := parseID(part)
			if err != nil {
				return nil, fmt.Errorf("invalid CPU number: %s", part)
			}
			cpus = append(cpus, id)
			continue
		}

		start, err := parseID(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid CPU number in range: %s", lo)
		}
		end, err := parseID(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid CPU number in range: %s", hi)
		}
		if start > end {
			return nil, fmt.Errorf("invalid CPU range (start > end): %s", part)
		}

		// "5-5" is accepted as [5] even though the kernel never writes it.
		for id := start; id <= end; id++ {
			cpus = append(cpus, id)
		}
	}

	return cpus, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("negative CPU number: %d", id)
	}
	return int(id), nil
}

// JoinList formats CPU ids as a comma-joined list in the given order,
// the form accepted by taskset -c. No range compaction is done.
//
// Examples:
//   - [4, 12] -> "4,12"
//   - [2] -> "2"
//   - [] -> ""
func JoinList(cpus []int) string {
	parts := make([]string, len(cpus))
	for i, id := range cpus {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
