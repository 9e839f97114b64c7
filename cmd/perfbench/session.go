// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/internal/bench"
	"github.com/antimetal/perfbench/internal/config"
	"github.com/antimetal/perfbench/internal/manifest"
	"github.com/antimetal/perfbench/internal/plot"
	"github.com/antimetal/perfbench/pkg/command"
	"github.com/antimetal/perfbench/pkg/config/environment"
	"github.com/antimetal/perfbench/pkg/host"
	"github.com/antimetal/perfbench/pkg/kernel"
	"github.com/antimetal/perfbench/pkg/perfevents"
	"github.com/antimetal/perfbench/pkg/topology"
)

// checkAffinity is replaced in tests, which cannot pin to arbitrary CPUs.
var checkAffinity = topology.CheckAllowed

// session holds what is resolved once per invocation and reused by every
// benchmark run, including re-runs in watch mode.
type session struct {
	cfg    config.Config
	runner command.Runner
	logger logr.Logger

	cpus     topology.CoreSet
	events   []string
	host     host.Info
	paranoid *int
}

func newSession(ctx context.Context, cfg config.Config, runner command.Runner, logger logr.Logger) (*session, error) {
	topo, err := topology.Discover(ctx, runner, environment.GetHostPaths().Sys, logger)
	if err != nil {
		return nil, err
	}
	cpus := topology.SelectPinningSet(topo)
	if err := checkAffinity(cpus); err != nil {
		return nil, err
	}
	logger.Info("pinning benchmark", "core", cpus.Core, "cpus", cpus.String())

	var (
		events   []string
		paranoid *int
	)
	if cfg.Profile {
		paranoid = checkParanoid(cfg.Sudo, logger)

		lister := perfevents.NewLister(runner, cfg.Sudo, logger)
		events, err = lister.Supported(ctx, cfg.RequestedEvents())
		if err != nil {
			return nil, err
		}
	}

	return &session{
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		cpus:     cpus,
		events:   events,
		host:     host.Identify(),
		paranoid: paranoid,
	}, nil
}

// checkParanoid warns when the kernel will refuse perf record to an
// unprivileged user. It returns nil when the level cannot be read.
func checkParanoid(sudo bool, logger logr.Logger) *int {
	level, err := kernel.PerfEventParanoid(environment.GetHostPaths().Proc)
	if err != nil {
		logger.V(1).Info("unable to read perf_event_paranoid", "error", err.Error())
		return nil
	}
	if !sudo && !kernel.UnprivilegedProfilingAllowed(level) {
		logger.Info("perf_event_paranoid forbids unprivileged profiling, perf record will likely fail without -sudo",
			"level", level)
	}
	return &level
}

func (s *session) benchOptions() (bench.Options, error) {
	r, err := s.cfg.InputRange()
	if err != nil {
		return bench.Options{}, err
	}
	opts := bench.DefaultOptions()
	opts.WorkDir = s.cfg.WorkDir
	opts.DataDir = s.cfg.DataDir
	opts.Program = s.cfg.Program
	opts.Compiler = s.cfg.Compiler
	opts.CFlags = s.cfg.CFlags
	opts.Range = r
	opts.Runs = s.cfg.Runs
	opts.InputName = s.cfg.InputName
	opts.Functions = s.cfg.FunctionSet()
	opts.CPUs = s.cpus
	opts.Profile = s.cfg.Profile
	opts.Events = s.events
	opts.Frequency = s.cfg.Frequency
	opts.Sudo = s.cfg.Sudo
	return opts, nil
}

// run compiles and runs the benchmark, then records the manifest and writes
// (and optionally runs) the plot script.
func (s *session) run(ctx context.Context) error {
	opts, err := s.benchOptions()
	if err != nil {
		return err
	}
	b, err := bench.New(s.runner, opts, s.logger)
	if err != nil {
		return err
	}

	m := manifest.New(s.cfg, s.cpus, s.events, s.host)
	m.PerfEventParanoid = s.paranoid
	if err := b.Compile(ctx); err != nil {
		return err
	}
	summary, err := prepareAndRun(ctx, b)
	if err != nil {
		return err
	}
	s.logger.Info("benchmark finished",
		"inputs", summary.Inputs,
		"runs", summary.Runs,
		"eventFiles", len(summary.EventFiles),
		"skippedReports", summary.SkippedReports)

	m.Finish(summary)
	if path, err := m.Write(b.DataDir()); err != nil {
		s.logger.Error(err, "failed to write run manifest")
	} else {
		s.logger.V(1).Info("wrote run manifest", "path", path)
	}

	emitter, err := plot.NewEmitter(plot.Options{
		WorkDir:          s.cfg.WorkDir,
		DataDir:          s.cfg.DataDir,
		InputName:        s.cfg.InputName,
		InputDisplayName: s.cfg.InputDisplayName,
		TimeUnit:         s.cfg.TimeUnit,
		Range:            opts.Range,
		Profile:          s.cfg.Profile,
		Events:           s.plotEvents(b, summary),
		Titles:           s.cfg.Titles,
	}, s.logger)
	if err != nil {
		return err
	}
	if _, err := emitter.WriteScript(s.cfg.Script); err != nil {
		return err
	}

	if s.cfg.RunPlot {
		s.runPlot(ctx)
	}
	return nil
}

// plotEvents lists the event files worth plotting. An event perf never
// reported under the requested spelling keeps a header-only file, which
// gnuplot cannot fit or plot.
func (s *session) plotEvents(b *bench.Benchmark, summary bench.Summary) []plot.Event {
	var events []plot.Event
	for _, name := range b.EventNames() {
		if summary.EventRows[name] == 0 {
			s.logger.Info("not plotting event without data rows", "event", name)
			continue
		}
		path, _ := b.EventFile(name)
		events = append(events, plot.Event{Name: name, File: filepath.Base(path)})
	}
	return events
}

func prepareAndRun(ctx context.Context, b *bench.Benchmark) (bench.Summary, error) {
	defer b.Cleanup()
	if err := b.Prepare(); err != nil {
		return bench.Summary{}, err
	}
	return b.Run(ctx)
}

// runPlot executes the plot script from the working directory. gnuplot
// missing or failing does not fail the benchmark; the data is already on disk.
func (s *session) runPlot(ctx context.Context) {
	script := s.cfg.Script
	if !filepath.IsAbs(script) {
		script = "." + string(filepath.Separator) + filepath.Clean(script)
	}
	if _, err := s.runner.Run(ctx, command.Cmd{Args: []string{script}, Dir: s.cfg.WorkDir}); err != nil {
		s.logger.Error(err, "failed to run plot script", "script", script)
	}
}
