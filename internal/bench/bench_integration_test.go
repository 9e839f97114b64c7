// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build integration

package bench_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/perfbench/internal/bench"
	"github.com/antimetal/perfbench/pkg/command"
	"github.com/antimetal/perfbench/pkg/config/environment"
	"github.com/antimetal/perfbench/pkg/datafile"
	"github.com/antimetal/perfbench/pkg/testutil"
	"github.com/antimetal/perfbench/pkg/topology"
)

const sumProgram = `#include <stdio.h>
#include <stdlib.h>
#include <time.h>

static double elapsed(struct timespec a, struct timespec b) {
	return (b.tv_sec - a.tv_sec) + (b.tv_nsec - a.tv_nsec) / 1e9;
}

int main(int argc, char **argv) {
	long n = atol(argv[1]);
	volatile long sum = 0;
	struct timespec t0, t1, t2;
	clock_gettime(CLOCK_MONOTONIC, &t0);
	for (long i = 0; i < n; i++) sum += i;
	clock_gettime(CLOCK_MONOTONIC, &t1);
	for (long i = n; i > 0; i--) sum += i;
	clock_gettime(CLOCK_MONOTONIC, &t2);
	printf("%f %f\n", elapsed(t0, t1), elapsed(t1, t2));
	return 0;
}
`

func TestBenchmark_RealTools(t *testing.T) {
	testutil.RequireLinux(t)
	testutil.RequireTools(t, "gcc", "taskset")

	ctx := context.Background()
	logger := testr.New(t)
	runner := command.NewLocal(logger)

	topo, err := topology.Discover(ctx, runner, environment.GetHostPaths().Sys, logger)
	require.NoError(t, err)
	cpus := topology.SelectPinningSet(topo)
	testutil.RequirePinnable(t, cpus)

	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "sum.c"), []byte(sumProgram), 0644))

	opts := bench.DefaultOptions()
	opts.WorkDir = work
	opts.Program = "sum"
	opts.Range = bench.InputRange{Min: 1000, Max: 3000, Increment: 1000}
	opts.Runs = 2
	opts.InputName = "n"
	opts.Functions = datafile.NewFunctionSet("forward", "backward")
	opts.CPUs = cpus

	b, err := bench.New(runner, opts, logger)
	require.NoError(t, err)
	require.NoError(t, b.Compile(ctx))
	require.NoError(t, b.Prepare())
	summary, err := b.Run(ctx)
	require.NoError(t, err)
	b.Cleanup()

	assert.Equal(t, 3, summary.Inputs)
	assert.Equal(t, 6, summary.Runs)

	n, err := datafile.CountLines(filepath.Join(b.DataDir(), datafile.TimesFile))
	require.NoError(t, err)
	assert.Equal(t, 1+6, n)

	_, err = os.Stat(filepath.Join(work, "sum"))
	assert.True(t, os.IsNotExist(err), "compiled program is cleaned up")
}
