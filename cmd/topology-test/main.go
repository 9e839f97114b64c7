// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Command topology-test prints the CPU topology perfbench sees and the core
// it would pin benchmarks to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/antimetal/perfbench/pkg/command"
	"github.com/antimetal/perfbench/pkg/config/environment"
	"github.com/antimetal/perfbench/pkg/cpu"
	"github.com/antimetal/perfbench/pkg/host"
	"github.com/antimetal/perfbench/pkg/kernel"
	"github.com/antimetal/perfbench/pkg/topology"
)

var (
	sysPath   string
	sysfsOnly bool
	verbose   bool
)

func init() {
	flag.StringVar(&sysPath, "sys", environment.GetHostPaths().Sys, "Root of the sysfs tree used when lscpu is unavailable")
	flag.BoolVar(&sysfsOnly, "sysfs-only", false, "Skip lscpu and read the topology from sysfs")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
}

func main() {
	flag.Parse()

	logger := logr.Discard()
	if verbose {
		zapLog, _ := zap.NewDevelopment()
		logger = zapr.NewLogger(zapLog)
	}

	info := host.Identify()
	fmt.Println("=== perfbench CPU Topology ===")
	fmt.Printf("Host:   %s (%s, kernel %s, release %s)\n", info.Hostname, info.Arch, info.Kernel, info.Kernel.Release)
	fmt.Println()

	topo, err := discover(context.Background(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Logical CPUs: %d, physical cores: %d\n", topo.Len(), len(topo.Cores()))
	for _, core := range topo.Cores() {
		fmt.Printf("   core %3d: cpus %s\n", core, cpu.JoinList(topo.CPUsOf(core)))
	}
	fmt.Println()

	set := topology.SelectPinningSet(topo)
	fmt.Printf("Pinning set: core %d, taskset -c %s\n", set.Core, set)
	if err := topology.CheckAllowed(set); err != nil {
		fmt.Printf("   ❌ %v\n", err)
	} else {
		fmt.Println("   ✅ allowed by this process's affinity mask")
	}

	if level, err := kernel.PerfEventParanoid(environment.GetHostPaths().Proc); err == nil {
		fmt.Printf("perf_event_paranoid: %d (unprivileged profiling allowed: %t)\n",
			level, kernel.UnprivilegedProfilingAllowed(level))
	}
}

func discover(ctx context.Context, logger logr.Logger) (topology.Topology, error) {
	if sysfsOnly {
		return topology.ReadSysfs(sysPath)
	}
	return topology.Discover(ctx, command.NewLocal(logger), sysPath, logger)
}
