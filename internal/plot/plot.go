// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package plot generates the shell script that renders benchmark data
// files with gnuplot.
//
// The script holds one `gnuplot -p -e "..."` invocation per plot: the
// timing plot, a speedup plot comparing the first two functions, and in
// profiling mode one plot per perf event. It is meant to be run from the
// benchmark's working directory.
package plot

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/internal/bench"
	"github.com/antimetal/perfbench/internal/config"
	"github.com/antimetal/perfbench/pkg/datafile"
)

// FitLog is the file gnuplot's fit command leaves behind.
const FitLog = "fit.log"

// ErrHeaderMismatch is returned when a data file is keyed by a different input
// name than the benchmark.
var ErrHeaderMismatch = errors.New("data file header does not match input name")

// Options describes the data the script plots.
type Options struct {
	// WorkDir is where the script runs.
	WorkDir string
	// DataDir holds the data files, relative to WorkDir unless absolute.
	DataDir          string
	InputName        string
	InputDisplayName string
	TimeUnit         string
	Range            bench.InputRange
	Profile          bool
	// Events are the perf events to plot.
	Events []Event
	Titles config.Titles
}

// Event is a perf event and its data file.
type Event struct {
	Name string
	// File is the data file name inside DataDir. Empty means
	// datafile.EventFileName(Name).
	File string
}

// Speedup returns how many times faster a is than b, negative when a is the
// slower one: Speedup(1, 4) is 4 and Speedup(4, 1) is -4.
func Speedup(a, b float64) float64 {
	if b/a < 1.0 {
		return -a / b
	}
	return b / a
}

// Emitter builds plot scripts.
type Emitter struct {
	opts   Options
	logger logr.Logger
}

// NewEmitter returns an Emitter for opts.
func NewEmitter(opts Options, logger logr.Logger) (*Emitter, error) {
	if _, ok := config.UnitFactor(opts.TimeUnit); !ok {
		return nil, fmt.Errorf("unknown time unit %q", opts.TimeUnit)
	}
	if opts.InputName == "" {
		return nil, errors.New("input name cannot be empty")
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	return &Emitter{opts: opts, logger: logger.WithName("plot")}, nil
}

// Emit returns the script text.
func (e *Emitter) Emit() (string, error) {
	times, err := e.header(datafile.TimesFile)
	if err != nil {
		return "", err
	}

	var script strings.Builder
	script.WriteString(wrap(e.timesCmds(times)))

	if len(times.Columns) >= 2 {
		script.WriteString(wrap(e.speedupCmds()))
	} else {
		e.logger.V(1).Info("skipping speedup plot, it needs two functions", "functions", times.Columns)
	}

	if e.opts.Profile {
		for _, event := range e.opts.Events {
			file := event.File
			if file == "" {
				file = datafile.EventFileName(event.Name)
			}
			h, err := e.header(file)
			if err != nil {
				return "", err
			}
			script.WriteString(wrap(e.eventCmds(event.Name, file, h)))
		}
	}

	script.WriteString("rm -f " + FitLog + "\n")
	return script.String(), nil
}

// WriteScript writes the script to path, relative to the working directory
// unless absolute, and makes it executable.
func (e *Emitter) WriteScript(scriptPath string) (string, error) {
	script, err := e.Emit()
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(e.opts.WorkDir, scriptPath)
	}
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("failed to write plot script: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(scriptPath, 0755); err != nil {
		return "", fmt.Errorf("failed to make plot script executable: %w", err)
	}
	e.logger.Info("wrote plot script", "path", scriptPath)
	return scriptPath, nil
}

func (e *Emitter) header(file string) (datafile.Header, error) {
	dir := e.opts.DataDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.opts.WorkDir, dir)
	}
	h, err := datafile.ReadHeader(filepath.Join(dir, file))
	if err != nil {
		return datafile.Header{}, err
	}
	if h.InputName != e.opts.InputName {
		return datafile.Header{}, fmt.Errorf("%w: %s is keyed by %q, expected %q",
			ErrHeaderMismatch, file, h.InputName, e.opts.InputName)
	}
	return h, nil
}

// scriptPath is the data file path as the script sees it.
func (e *Emitter) scriptPath(file string) string {
	return path.Join(filepath.ToSlash(e.opts.DataDir), file)
}

func (e *Emitter) safeToFit() bool {
	return e.opts.Range.SafeToFit()
}

func (e *Emitter) preamble(g *gnuplot, title string) {
	g.cmd("set title noenhanced")
	g.cmd("set title " + doubleQuoted(title))
	g.cmd("set datafile missing '0'")
	g.cmd("set pointsize 0.5")
	// snake_case function names are not subscripted
	g.cmd("set key noenhanced")
	g.cmd("set key outside")
	g.cmd("set xtics rotate")
	g.cmd("set xlabel noenhanced")
	g.cmd("set xlabel " + doubleQuoted(e.opts.InputDisplayName))
}

func (e *Emitter) fitSettings(g *gnuplot) {
	if e.safeToFit() {
		g.cmd("set fit quiet")
		g.cmd("set fit maxiter 300")
	}
	g.blank()
}

// linearFit declares f<i> and fits it to using. The fit is shifted by the
// first input, gnuplot's fit goes wrong on large x offsets otherwise.
func (e *Emitter) linearFit(g *gnuplot, i int, file, using string) {
	n := strconv.Itoa(i)
	g.cmd(fmt.Sprintf("f%s(x) = a%s*(x-%d) + b%s", n, n, e.opts.Range.Min, n))
	g.cmd(fmt.Sprintf("fit f%s(x) %s u %s via a%s, b%s", n, singleQuoted(file), using, n, n))
	g.blank()
}

// plotColumns plots every function column of file, using(i) selecting the
// y value of column i.
func (e *Emitter) plotColumns(g *gnuplot, h datafile.Header, file string, using func(i int) string) {
	fits := e.safeToFit()
	if fits {
		for i := range h.Columns {
			e.linearFit(g, i+2, file, using(i+2))
		}
	}

	series := make([]string, 0, len(h.Columns))
	for i, fn := range h.Columns {
		s := fmt.Sprintf("%s u %s title %s with points pointtype 5", singleQuoted(file), using(i+2), singleQuoted(fn))
		if fits {
			s += fmt.Sprintf(", f%d(x) notitle", i+2)
		}
		series = append(series, s)
	}
	g.cmd("plot " + strings.Join(series, ", "))
}

func (e *Emitter) timesCmds(h datafile.Header) string {
	factor, _ := config.UnitFactor(e.opts.TimeUnit)
	unit := strconv.FormatFloat(factor, 'f', 1, 64)
	file := e.scriptPath(datafile.TimesFile)

	g := &gnuplot{}
	e.preamble(g, e.opts.Titles.Times)
	g.cmd("set ylabel " + singleQuoted("Time ("+e.opts.TimeUnit+")"))
	e.fitSettings(g)
	e.plotColumns(g, h, file, func(i int) string {
		return fmt.Sprintf(`1:(\$%d*%s)`, i, unit)
	})
	return g.String()
}

func (e *Emitter) speedupCmds() string {
	file := singleQuoted(e.scriptPath(datafile.TimesFile))
	using := `1:(speedup(\$2, \$3))`

	g := &gnuplot{}
	e.preamble(g, e.opts.Titles.Speedup)
	g.cmd("set ylabel 'Times faster'")
	g.cmd("set format y '%16.1fx'")
	e.fitSettings(g)
	g.cmd("f(x) = a*x + b")
	g.cmd("speedup(arr_time, ll_time) = ll_time/arr_time < 1.0 ? -arr_time/ll_time : ll_time/arr_time")
	if e.safeToFit() {
		g.cmd("fit f(x) " + file + " u " + using + " via a, b")
		g.blank()
		g.cmd("plot " + file + " u " + using + " notitle with points pointtype 5, f(x) notitle")
	} else {
		g.cmd("plot " + file + " u " + using + " notitle with points pointtype 5")
	}
	return g.String()
}

func (e *Emitter) eventCmds(event, file string, h datafile.Header) string {
	g := &gnuplot{}
	e.preamble(g, strings.ReplaceAll(e.opts.Titles.Events, "%s", event))
	g.cmd("set ylabel noenhanced")
	g.cmd("set ylabel 'Percentage of all samples'")
	g.cmd(`set format y '%16.1f\\%%'`)
	e.fitSettings(g)
	e.plotColumns(g, h, e.scriptPath(file), func(i int) string {
		return "1:" + strconv.Itoa(i)
	})
	return g.String()
}
