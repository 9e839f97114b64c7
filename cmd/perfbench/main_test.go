// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/perfbench/internal/config"
	"github.com/antimetal/perfbench/internal/manifest"
	"github.com/antimetal/perfbench/pkg/command"
	"github.com/antimetal/perfbench/pkg/datafile"
	"github.com/antimetal/perfbench/pkg/topology"
)

const lscpuOutput = `# The following is the parsable format, which can be fed to other
# programs. Each different item in every column has an unique ID
# starting from zero.
# CPU,Core,Socket,Node,,L1d,L1i,L2,L3
0,0,0,0,,0,0,0,0
1,1,0,0,,1,1,1,0
2,2,0,0,,2,2,2,0
3,3,0,0,,3,3,3,0
4,0,0,0,,0,0,0,0
5,1,0,0,,1,1,1,0
6,2,0,0,,2,2,2,0
7,3,0,0,,3,3,3,0
`

const perfList = `List of pre-defined events (to be used in -e or -M):

  cache-misses                                       [Hardware event]
  instructions                                       [Hardware event]
`

const perfReport = `# Samples: 4K of event 'cache-misses'
    61.27%  sum      sum                [.] sum_list
    30.02%  sum      sum                [.] sum_array
`

func allowAnyCPU(t *testing.T) {
	t.Helper()
	orig := checkAffinity
	checkAffinity = func(topology.CoreSet) error { return nil }
	t.Cleanup(func() { checkAffinity = orig })
}

func fakeHost(plotErr error) *command.Fake {
	return &command.Fake{Handler: func(cmd command.Cmd) (string, error) {
		argv := strings.Join(cmd.Args, " ")
		switch {
		case argv == "lscpu -p":
			return lscpuOutput, nil
		case strings.HasSuffix(argv, "perf list"):
			return perfList, nil
		case strings.Contains(argv, "perf report"):
			return perfReport, nil
		case strings.Contains(argv, "taskset"):
			return "0.002 0.008\n", nil
		case strings.HasSuffix(argv, "plot.sh"):
			return "", plotErr
		default:
			return "", nil
		}
	}}
}

func testConfig(t *testing.T, profile bool) config.Config {
	t.Helper()
	cfg, err := config.FromArgs([]string{
		"sum", "1:3,1", "2", "ms", "len", "Length", "sum_array/sum_list",
		strconv.FormatBool(profile), "cache-misses,bogus", "max",
	}, config.DefaultConfig())
	require.NoError(t, err)
	cfg.WorkDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSession_Plain(t *testing.T) {
	allowAnyCPU(t)
	cfg := testConfig(t, false)
	runner := fakeHost(nil)

	s, err := newSession(context.Background(), cfg, runner, testr.New(t))
	require.NoError(t, err)
	assert.Equal(t, topology.CoreSet{Core: 2, CPUs: []int{2, 6}}, s.cpus)
	assert.Empty(t, s.events)

	require.NoError(t, s.run(context.Background()))

	dataDir := filepath.Join(cfg.WorkDir, "data")
	n, err := datafile.CountLines(filepath.Join(dataDir, datafile.TimesFile))
	require.NoError(t, err)
	assert.Equal(t, 1+3*2, n)

	m, err := manifest.Read(filepath.Join(dataDir, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, 6, m.Summary.Runs)
	assert.Equal(t, []int{2, 6}, m.CPUs)

	info, err := os.Stat(filepath.Join(cfg.WorkDir, "plot.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	argvs := runner.Argvs()
	assert.Equal(t, []string{"gcc", "sum.c", "-Wall", "-O3", "-o", "sum"}, argvs[1])
	assert.Equal(t, []string{"taskset", "-c", "2,6", "./sum", "1"}, argvs[2])
	assert.Equal(t, []string{"./plot.sh"}, argvs[len(argvs)-1])
	for _, argv := range argvs {
		assert.NotContains(t, strings.Join(argv, " "), "perf")
	}
}

func TestSession_Profile(t *testing.T) {
	allowAnyCPU(t)
	cfg := testConfig(t, true)
	cfg.RunPlot = false
	runner := fakeHost(nil)

	s, err := newSession(context.Background(), cfg, runner, testr.New(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"cache-misses"}, s.events)

	require.NoError(t, s.run(context.Background()))

	rows, err := datafile.CountLines(filepath.Join(cfg.WorkDir, "data", "cache-misses.data"))
	require.NoError(t, err)
	assert.Equal(t, 1+3*2, rows)

	script, err := os.ReadFile(filepath.Join(cfg.WorkDir, "plot.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "'data/cache-misses.data'")

	for _, argv := range runner.Argvs() {
		assert.NotEqual(t, []string{"./plot.sh"}, argv)
	}
}

func TestSession_EventsWithoutRowsAreNotPlotted(t *testing.T) {
	allowAnyCPU(t)
	cfg := testConfig(t, true)
	cfg.Events = []string{"cache-misses", "instructions"}
	cfg.RunPlot = false

	s, err := newSession(context.Background(), cfg, fakeHost(nil), testr.New(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"cache-misses", "instructions"}, s.events)
	require.NoError(t, s.run(context.Background()))

	rows, err := datafile.CountLines(filepath.Join(cfg.WorkDir, "data", "instructions.data"))
	require.NoError(t, err)
	assert.Equal(t, 1, rows, "perf reported no instructions samples")

	script, err := os.ReadFile(filepath.Join(cfg.WorkDir, "plot.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "'data/cache-misses.data'")
	assert.NotContains(t, string(script), "instructions")
}

func TestSession_PlotFailureIsNotFatal(t *testing.T) {
	allowAnyCPU(t)
	cfg := testConfig(t, false)
	s, err := newSession(context.Background(), cfg, fakeHost(errors.New("gnuplot: not found")), testr.New(t))
	require.NoError(t, err)
	require.NoError(t, s.run(context.Background()))
}

func TestSession_PerfListFailure(t *testing.T) {
	allowAnyCPU(t)
	cfg := testConfig(t, true)
	runner := &command.Fake{Handler: func(cmd command.Cmd) (string, error) {
		if cmd.Args[0] == "lscpu" {
			return lscpuOutput, nil
		}
		return "", errors.New("perf: command not found")
	}}
	_, err := newSession(context.Background(), cfg, runner, testr.New(t))
	require.Error(t, err)
}

func TestSession_AffinityRejected(t *testing.T) {
	orig := checkAffinity
	checkAffinity = func(topology.CoreSet) error { return topology.ErrCPUNotAllowed }
	t.Cleanup(func() { checkAffinity = orig })

	_, err := newSession(context.Background(), testConfig(t, false), fakeHost(nil), testr.New(t))
	require.ErrorIs(t, err, topology.ErrCPUNotAllowed)
}

func TestLogEncoding(t *testing.T) {
	tests := []struct {
		format   string
		terminal bool
		want     string
		wantErr  bool
	}{
		{format: "auto", terminal: true, want: "console"},
		{format: "auto", terminal: false, want: "json"},
		{format: "json", terminal: true, want: "json"},
		{format: "console", terminal: false, want: "console"},
		{format: "text", wantErr: true},
	}
	for _, tt := range tests {
		got, err := logEncoding(tt.format, tt.terminal)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(true, "json")
	require.NoError(t, err)
	assert.True(t, logger.V(1).Enabled())

	logger, err = newLogger(false, "console")
	require.NoError(t, err)
	assert.False(t, logger.V(1).Enabled())

	_, err = newLogger(false, "xml")
	require.Error(t, err)
}

func TestSession_RecordsPerfEventParanoid(t *testing.T) {
	allowAnyCPU(t)
	proc := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(proc, "sys", "kernel"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(proc, "sys", "kernel", "perf_event_paranoid"), []byte("3\n"), 0644))
	t.Setenv("HOST_PROC", proc)

	cfg := testConfig(t, true)
	cfg.Sudo = false
	cfg.RunPlot = false
	s, err := newSession(context.Background(), cfg, fakeHost(nil), testr.New(t))
	require.NoError(t, err)
	require.NotNil(t, s.paranoid)
	assert.Equal(t, 3, *s.paranoid)

	require.NoError(t, s.run(context.Background()))
	m, err := manifest.Read(filepath.Join(cfg.WorkDir, "data", manifest.FileName))
	require.NoError(t, err)
	require.NotNil(t, m.PerfEventParanoid)
	assert.Equal(t, 3, *m.PerfEventParanoid)
}
