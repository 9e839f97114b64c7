// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package bench drives one benchmark: it compiles the target program, runs it
// pinned to a core for every input and run, and accumulates timing and perf
// event rows in data files.
//
// Everything is sequential. `perf report` reads the perf.data left behind by
// the previous `perf record`, so a report must be collected before the next
// run starts.
package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/pkg/command"
	"github.com/antimetal/perfbench/pkg/datafile"
	"github.com/antimetal/perfbench/pkg/perfreport"
	"github.com/antimetal/perfbench/pkg/topology"
)

var (
	// ErrCompileFailed is returned when the target program does not compile.
	ErrCompileFailed = errors.New("failed to compile benchmark program")
	// ErrRunFailed is returned when a benchmark launch fails. It aborts the
	// whole benchmark.
	ErrRunFailed = errors.New("benchmark run failed")
)

// Files perf leaves in the working directory.
var perfScratchFiles = []string{"perf.data", "perf.data.old"}

// Options configures a Benchmark.
type Options struct {
	// WorkDir holds the program source and is the working directory of
	// every launched process.
	WorkDir string
	// DataDir is where data files are written, relative to WorkDir unless absolute.
	DataDir string
	// Program is the source basename; <Program>.c is compiled to <Program>.
	Program  string
	Compiler string
	CFlags   []string

	Range     InputRange
	Runs      int
	InputName string
	Functions datafile.FunctionSet
	CPUs      topology.CoreSet

	// Profile wraps every run in `perf record` and collects a report.
	Profile bool
	// Events are the perf events to record, already filtered to those
	// the host supports. Empty means perf's default event.
	Events []string
	// Frequency is the perf sampling frequency, a number or "max".
	Frequency string
	// Sudo runs perf through sudo.
	Sudo bool

	// ReportAttempts bounds how often `perf report` is launched per run.
	ReportAttempts uint
	// ReportBackoff is the initial delay between report attempts.
	ReportBackoff time.Duration
}

// DefaultOptions returns Options with the harness defaults filled in.
func DefaultOptions() Options {
	return Options{
		WorkDir:        ".",
		DataDir:        "data",
		Compiler:       "gcc",
		CFlags:         []string{"-Wall", "-O3"},
		Runs:           1,
		Frequency:      "max",
		Sudo:           true,
		ReportAttempts: 3,
		ReportBackoff:  200 * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.Program == "" {
		return errors.New("program cannot be empty")
	}
	if err := o.Range.Validate(); err != nil {
		return err
	}
	if o.Runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", o.Runs)
	}
	if o.InputName == "" {
		return errors.New("input name cannot be empty")
	}
	if len(o.CPUs.CPUs) == 0 {
		return errors.New("no CPUs to pin to")
	}
	if o.Profile && o.Frequency == "" {
		return errors.New("sampling frequency cannot be empty in profiling mode")
	}
	return nil
}

// Summary counts what a benchmark produced.
type Summary struct {
	Inputs int
	Runs   int
	// EventFiles lists the event data files in creation order.
	EventFiles []string
	// EventRows counts rows appended per event.
	EventRows map[string]int
	// SkippedReports counts profiled runs that contributed no event rows.
	SkippedReports int
}

// Benchmark runs a configured benchmark.
type Benchmark struct {
	opts   Options
	runner command.Runner
	logger logr.Logger

	times      datafile.File
	events     map[string]datafile.File
	eventOrder []string
	// taken maps every data file name in use to its event; the timing file
	// maps to "".
	taken map[string]string
}

// New validates opts and returns a Benchmark.
func New(runner command.Runner, opts Options, logger logr.Logger) (*Benchmark, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid benchmark options: %w", err)
	}
	if opts.ReportAttempts == 0 {
		opts.ReportAttempts = 1
	}
	return &Benchmark{
		opts:   opts,
		runner: runner,
		logger: logger.WithName("bench"),
		events: make(map[string]datafile.File),
	}, nil
}

// DataDir returns the resolved data directory.
func (b *Benchmark) DataDir() string {
	if filepath.IsAbs(b.opts.DataDir) {
		return b.opts.DataDir
	}
	return filepath.Join(b.opts.WorkDir, b.opts.DataDir)
}

// Compile builds <Program>.c into <Program> inside WorkDir.
func (b *Benchmark) Compile(ctx context.Context) error {
	args := []string{b.opts.Compiler, b.opts.Program + ".c"}
	args = append(args, b.opts.CFlags...)
	args = append(args, "-o", b.opts.Program)

	b.logger.Info("compiling benchmark program", "argv", args)
	if _, err := b.runner.Run(ctx, command.Cmd{Args: args, Dir: b.opts.WorkDir}); err != nil {
		return fmt.Errorf("%w: %w", ErrCompileFailed, err)
	}
	return nil
}

// Prepare recreates the data directory and writes the header of the timing
// file and, when profiling, of every event file.
func (b *Benchmark) Prepare() error {
	dir := b.DataDir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove old data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	header := datafile.NewHeader(b.opts.InputName, b.opts.Functions)
	times, err := datafile.Create(filepath.Join(dir, datafile.TimesFile), header)
	if err != nil {
		return err
	}
	b.times = times

	b.events = make(map[string]datafile.File)
	b.eventOrder = nil
	b.taken = map[string]string{datafile.TimesFile: ""}
	if b.opts.Profile {
		for _, event := range b.opts.Events {
			if _, err := b.eventFile(event); err != nil {
				return err
			}
		}
	}
	return nil
}

// eventFile returns the data file for event, creating it with a header on
// first use. perf may report events under a different spelling than
// requested (e.g. with a ":u" modifier); those get their own file too.
func (b *Benchmark) eventFile(event string) (datafile.File, error) {
	if f, ok := b.events[event]; ok {
		return f, nil
	}
	name := b.eventFileName(event)
	path := filepath.Join(b.DataDir(), name)
	f, err := datafile.Create(path, datafile.NewHeader(b.opts.InputName, b.opts.Functions))
	if err != nil {
		return datafile.File{}, err
	}
	b.taken[name] = event
	b.events[event] = f
	b.eventOrder = append(b.eventOrder, event)
	return f, nil
}

// eventFileName picks a file name no other data file uses. Distinct events
// can map to the same name ("cpu/cycles/" and "cpu_cycles_", or an event
// called "times"); later ones get a numeric suffix.
func (b *Benchmark) eventFileName(event string) string {
	name := datafile.EventFileName(event)
	for n := 2; ; n++ {
		other, ok := b.taken[name]
		if !ok {
			return name
		}
		b.logger.V(1).Info("event data file name already in use", "event", event, "file", name, "usedBy", other)
		name = datafile.EventFileName(fmt.Sprintf("%s-%d", event, n))
	}
}

// EventFile returns the data file path of event, if it has one.
func (b *Benchmark) EventFile(event string) (string, bool) {
	f, ok := b.events[event]
	return f.Path, ok
}

// Run executes every (input, run) pair in order. Prepare must have been
// called. A failed launch aborts the benchmark; a missing or unparseable
// perf report only skips that run's event rows.
func (b *Benchmark) Run(ctx context.Context) (Summary, error) {
	summary := Summary{EventRows: make(map[string]int)}
	if b.times.Path == "" {
		return summary, errors.New("benchmark not prepared")
	}

	b.logger.Info("starting benchmark",
		"program", b.opts.Program,
		"range", b.opts.Range.String(),
		"runs", b.opts.Runs,
		"cpus", b.opts.CPUs.String(),
		"profile", b.opts.Profile)

	for input := range b.opts.Range.Inputs() {
		if err := ctx.Err(); err != nil {
			return b.finish(summary), err
		}

		b.logger.Info("running benchmark", "input", input)
		for run := 0; run < b.opts.Runs; run++ {
			if err := b.runOnce(ctx, input, run, &summary); err != nil {
				return b.finish(summary), err
			}
		}
		summary.Inputs++
	}

	return b.finish(summary), nil
}

func (b *Benchmark) finish(s Summary) Summary {
	s.EventFiles = make([]string, len(b.eventOrder))
	for i, event := range b.eventOrder {
		s.EventFiles[i] = b.events[event].Path
	}
	return s
}

// EventNames returns the events that have a data file, in creation order.
func (b *Benchmark) EventNames() []string {
	return append([]string(nil), b.eventOrder...)
}

func (b *Benchmark) runOnce(ctx context.Context, input, run int, summary *Summary) error {
	args := b.targetArgs(input)
	if b.opts.Profile {
		args = b.recordArgs(args)
	}

	out, err := b.times.OpenAppend()
	if err != nil {
		return fmt.Errorf("failed to open timing file: %w", err)
	}
	b.logger.V(1).Info("launching run", "input", input, "run", run, "argv", args)
	_, err = b.runner.Run(ctx, command.Cmd{Args: args, Dir: b.opts.WorkDir, Stdout: out})
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: input %d run %d: %w", ErrRunFailed, input, run, err)
	}
	summary.Runs++

	if b.opts.Profile {
		return b.collectReport(ctx, input, summary)
	}
	return nil
}

// targetArgs pins the program to the selected CPUs with taskset.
func (b *Benchmark) targetArgs(input int) []string {
	return []string{"taskset", "-c", b.opts.CPUs.String(), "./" + b.opts.Program, strconv.Itoa(input)}
}

func (b *Benchmark) perf(args ...string) []string {
	argv := append([]string{"perf"}, args...)
	if b.opts.Sudo {
		argv = append([]string{"sudo"}, argv...)
	}
	return argv
}

func (b *Benchmark) recordArgs(target []string) []string {
	args := b.perf("record", "-F", b.opts.Frequency)
	if len(b.opts.Events) > 0 {
		args = append(args, "-e", strings.Join(b.opts.Events, ","))
	}
	args = append(args, "--")
	return append(args, target...)
}

func (b *Benchmark) fetchReport(ctx context.Context) (command.Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.opts.ReportBackoff

	args := b.perf("report", "--stdio")
	return backoff.Retry(ctx, func() (command.Result, error) {
		return b.runner.Run(ctx, command.Cmd{Args: args, Dir: b.opts.WorkDir})
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(b.opts.ReportAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.logger.V(1).Info("perf report failed, retrying", "error", err.Error(), "in", next)
		}),
	)
}

// collectReport appends one row per reported event. Only data file I/O
// errors are returned.
func (b *Benchmark) collectReport(ctx context.Context, input int, summary *Summary) error {
	res, err := b.fetchReport(ctx)
	if err != nil {
		b.logger.Error(err, "no perf report for run, skipping event rows", "input", input)
		summary.SkippedReports++
		return nil
	}

	report, err := perfreport.ParseReader(bytes.NewReader(res.Stdout), b.opts.Functions)
	if err != nil || report.Len() == 0 {
		b.logger.Info("perf report has no event data, skipping event rows", "input", input, "error", err)
		summary.SkippedReports++
		return nil
	}

	for _, event := range report.Events {
		row, _ := report.Row(event)
		f, err := b.eventFile(event)
		if err != nil {
			return err
		}
		if err := f.AppendRow(input, row); err != nil {
			return fmt.Errorf("failed to append %s row: %w", event, err)
		}
		summary.EventRows[event]++
	}
	return nil
}

// Cleanup removes the compiled program and perf's scratch files. Failures
// are logged and otherwise ignored.
func (b *Benchmark) Cleanup() {
	paths := []string{b.opts.Program}
	paths = append(paths, perfScratchFiles...)
	for _, p := range paths {
		full := filepath.Join(b.opts.WorkDir, p)
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Error(err, "failed to clean up", "path", full)
		}
	}
}
