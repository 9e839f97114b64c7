// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package topology

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/pkg/command"
)

// Discover reads the host topology from `lscpu -p`, falling back to sysfs
// under sysPath when lscpu is missing, fails, or reports nothing.
func Discover(ctx context.Context, runner command.Runner, sysPath string, logger logr.Logger) (Topology, error) {
	logger = logger.WithName("topology")

	res, err := runner.Run(ctx, command.Cmd{Args: []string{"lscpu", "-p"}})
	if err == nil {
		topo, perr := ParseLscpu(bytes.NewReader(res.Stdout))
		if perr == nil && topo.Len() > 0 {
			logger.V(1).Info("topology read from lscpu", "cpus", topo.Len(), "cores", len(topo.Cores()))
			return topo, nil
		}
		err = perr
	}
	logger.Info("lscpu unavailable, falling back to sysfs", "reason", err, "sysPath", sysPath)

	topo, serr := ReadSysfs(sysPath)
	if serr != nil {
		return Topology{}, fmt.Errorf("%w: lscpu: %v, sysfs: %v", ErrNoTopology, err, serr)
	}
	if topo.Len() == 0 {
		return Topology{}, ErrNoTopology
	}
	logger.V(1).Info("topology read from sysfs", "cpus", topo.Len(), "cores", len(topo.Cores()))
	return topo, nil
}
