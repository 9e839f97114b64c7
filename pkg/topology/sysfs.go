// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/antimetal/perfbench/pkg/cpu"
)

type packageCore struct {
	pkg  int
	core int
}

// ReadSysfs builds a Topology from <sysPath>/devices/system/cpu.
//
// Kernel core_id values are only unique within a package, so every distinct
// (physical_package_id, core_id) pair is renumbered into a dense global core
// id, ordered by package then core_id. This matches the numbering lscpu uses
// for its Core column.
func ReadSysfs(sysPath string) (Topology, error) {
	cpuDir := filepath.Join(sysPath, "devices", "system", "cpu")

	online, err := os.ReadFile(filepath.Join(cpuDir, "online"))
	if err != nil {
		return Topology{}, fmt.Errorf("failed to read online CPU list: %w", err)
	}
	ids, err := cpu.ParseList(string(online))
	if err != nil {
		return Topology{}, fmt.Errorf("failed to parse online CPU list: %w", err)
	}

	keys := make([]packageCore, len(ids))
	for i, id := range ids {
		topoDir := filepath.Join(cpuDir, "cpu"+strconv.Itoa(id), "topology")

		coreID, err := readIntFile(filepath.Join(topoDir, "core_id"))
		if err != nil {
			return Topology{}, fmt.Errorf("cpu%d: %w", id, err)
		}
		// physical_package_id is missing on some virtual machines.
		pkgID, err := readIntFile(filepath.Join(topoDir, "physical_package_id"))
		if err != nil {
			pkgID = 0
		}
		keys[i] = packageCore{pkg: pkgID, core: coreID}
	}

	distinct := make([]packageCore, 0, len(keys))
	seen := make(map[packageCore]struct{})
	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			distinct = append(distinct, k)
		}
	}
	sort.Slice(distinct, func(i, j int) bool {
		if distinct[i].pkg != distinct[j].pkg {
			return distinct[i].pkg < distinct[j].pkg
		}
		return distinct[i].core < distinct[j].core
	})
	global := make(map[packageCore]int, len(distinct))
	for i, k := range distinct {
		global[k] = i
	}

	cpus := make([]LogicalCPU, len(ids))
	for i, id := range ids {
		cpus[i] = LogicalCPU{ID: id, Core: global[keys[i]]}
	}
	return New(cpus...)
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid integer in %s: %w", path, err)
	}
	return v, nil
}
