// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package topology discovers the host's CPU layout and picks the logical CPUs
// a benchmark should be pinned to.
//
// The choice is a best-effort isolation heuristic. It steers clear of the
// lowest-numbered cores, which the OS tends to favour for housekeeping and
// interrupt work, but it does not guarantee exclusive use of the core and on
// hybrid (performance/efficiency) parts it does not know which kind of core
// it picked.
package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antimetal/perfbench/pkg/cpu"
)

var (
	// ErrNoTopology is returned when no topology source produced any CPUs.
	ErrNoTopology = errors.New("no CPU topology available")
	// ErrCPUNotAllowed is returned when a selected CPU is outside the
	// scheduler affinity mask of this process.
	ErrCPUNotAllowed = errors.New("selected CPU not allowed by scheduler affinity")
)

// LogicalCPU is one logical CPU and the physical core that owns it.
type LogicalCPU struct {
	ID   int
	Core int
}

// Topology maps logical CPUs to physical cores. CPUs keep the order in
// which the host reported them.
type Topology struct {
	cpus []LogicalCPU
}

// New builds a Topology. Each logical CPU id may appear only once.
func New(cpus ...LogicalCPU) (Topology, error) {
	seen := make(map[int]struct{}, len(cpus))
	for _, c := range cpus {
		if c.ID < 0 || c.Core < 0 {
			return Topology{}, fmt.Errorf("negative id in cpu %d core %d", c.ID, c.Core)
		}
		if _, dup := seen[c.ID]; dup {
			return Topology{}, fmt.Errorf("cpu %d listed more than once", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return Topology{cpus: append([]LogicalCPU(nil), cpus...)}, nil
}

// Len returns the number of logical CPUs.
func (t Topology) Len() int { return len(t.cpus) }

// Cores returns the distinct physical core ids in ascending order.
func (t Topology) Cores() []int {
	seen := make(map[int]struct{})
	var cores []int
	for _, c := range t.cpus {
		if _, ok := seen[c.Core]; ok {
			continue
		}
		seen[c.Core] = struct{}{}
		cores = append(cores, c.Core)
	}
	sort.Ints(cores)
	return cores
}

// CPUsOf returns the logical CPUs of core in encounter order.
func (t Topology) CPUsOf(core int) []int {
	var ids []int
	for _, c := range t.cpus {
		if c.Core == core {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// CoreSet is the set of sibling logical CPUs of one physical core.
type CoreSet struct {
	Core int
	CPUs []int
}

// String returns the comma-joined CPU list understood by taskset -c.
func (s CoreSet) String() string {
	return cpu.JoinList(s.CPUs)
}

// preferredCoreIndex is the index into the sorted core ids that is used when
// the host has enough cores. Cores 0 and 1 are skipped.
const preferredCoreIndex = 2

// SelectPinningSet deterministically chooses the core to pin to:
//   - no cores at all: core 0, CPU 0
//   - up to two cores: the highest core id
//   - otherwise: the third-lowest core id
//
// The returned set always has at least one CPU.
func SelectPinningSet(t Topology) CoreSet {
	cores := t.Cores()

	var core int
	switch {
	case len(cores) == 0:
		return CoreSet{Core: 0, CPUs: []int{0}}
	case len(cores) <= preferredCoreIndex:
		core = cores[len(cores)-1]
	default:
		core = cores[preferredCoreIndex]
	}

	return CoreSet{Core: core, CPUs: t.CPUsOf(core)}
}
