// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package config assembles a benchmark configuration from positional
// arguments, an optional YAML file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antimetal/perfbench/internal/bench"
	"github.com/antimetal/perfbench/pkg/datafile"
)

// NumPositionalArgs is the number of positional arguments the CLI expects.
const NumPositionalArgs = 10

// ErrNotEnoughArgs is returned when fewer than NumPositionalArgs positional
// arguments are given and no config file supplies them.
var ErrNotEnoughArgs = errors.New("not enough arguments")

// MaxFrequency asks perf to sample as fast as the host allows.
const MaxFrequency = "max"

// Seconds-to-unit factors for the supported time units.
var timeUnits = map[string]float64{
	"s":  1.0,
	"ms": 1000.0,
	"us": 1000000.0,
}

// UnitFactor returns the factor that converts seconds into unit.
func UnitFactor(unit string) (float64, bool) {
	f, ok := timeUnits[unit]
	return f, ok
}

// Config describes one benchmark.
type Config struct {
	// Program is the basename of the C source to benchmark, without ".c".
	Program string `yaml:"program"`
	// Range is the input sweep, "min:max,increment".
	Range            string   `yaml:"range"`
	Runs             int      `yaml:"runs"`
	TimeUnit         string   `yaml:"timeUnit"`
	InputName        string   `yaml:"inputName"`
	InputDisplayName string   `yaml:"inputDisplayName"`
	Functions        []string `yaml:"functions"`
	Profile          bool     `yaml:"profile"`
	Events           []string `yaml:"events"`
	// Frequency is the perf sampling frequency, a positive integer or "max".
	Frequency string `yaml:"frequency"`

	WorkDir  string   `yaml:"workDir"`
	DataDir  string   `yaml:"dataDir"`
	Script   string   `yaml:"script"`
	Compiler string   `yaml:"compiler"`
	CFlags   []string `yaml:"cflags"`
	Sudo     bool     `yaml:"sudo"`
	RunPlot  bool     `yaml:"runPlot"`
	Watch    bool     `yaml:"watch"`

	Titles Titles `yaml:"titles"`
}

// Titles are the plot titles. "%s" in Events is replaced with the event name.
type Titles struct {
	Times   string `yaml:"times"`
	Speedup string `yaml:"speedup"`
	Events  string `yaml:"events"`
}

// DefaultConfig returns the defaults for everything that is not positional.
func DefaultConfig() Config {
	return Config{
		Runs:      1,
		TimeUnit:  "s",
		Frequency: MaxFrequency,
		WorkDir:   ".",
		DataDir:   "data",
		Script:    "plot.sh",
		Compiler:  "gcc",
		CFlags:    []string{"-Wall", "-O3"},
		Sudo:      true,
		RunPlot:   true,
		Titles: Titles{
			Times:   `Time to Find the Sum of All Integers\nin an Array and a Linked List`,
			Speedup: `How Many Times Faster It Is to Sum All Integers\nin an Array Than All Integers in a Linked List`,
			Events:  `Frequency of Perf Event '%s'\nWhile Summing All Integers in an Array and a Linked List`,
		},
	}
}

// LoadFile decodes the YAML file at path on top of base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) == 0 {
		return Config{}, fmt.Errorf("config file %s is empty", path)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return cfg, nil
}

// FromArgs applies the positional arguments, in order:
//
//	program range runs time_unit input_name input_display_name
//	functions profile events frequency
//
// functions is '/'-delimited, events is ','-delimited and profile is
// enabled only by the literal "true".
func FromArgs(args []string, base Config) (Config, error) {
	if len(args) < NumPositionalArgs {
		return Config{}, fmt.Errorf("%w: expected %d arguments, only got %d", ErrNotEnoughArgs, NumPositionalArgs, len(args))
	}

	runs, err := strconv.Atoi(args[2])
	if err != nil {
		return Config{}, fmt.Errorf("invalid run count %q: %w", args[2], err)
	}

	cfg := base
	cfg.Program = strings.TrimSuffix(args[0], ".c")
	cfg.Range = args[1]
	cfg.Runs = runs
	cfg.TimeUnit = args[3]
	cfg.InputName = args[4]
	cfg.InputDisplayName = args[5]
	cfg.Functions = strings.Split(args[6], datafile.FunctionListSeparator)
	cfg.Profile = args[7] == "true"
	cfg.Events = strings.Split(args[8], ",")
	cfg.Frequency = args[9]
	return cfg, nil
}

// InputRange parses Range.
func (c Config) InputRange() (bench.InputRange, error) {
	return bench.ParseInputRange(c.Range)
}

// FunctionSet returns the normalized function names.
func (c Config) FunctionSet() datafile.FunctionSet {
	return datafile.NewFunctionSet(c.Functions...)
}

// RequestedEvents returns Events with blank entries removed.
func (c Config) RequestedEvents() []string {
	var events []string
	for _, e := range c.Events {
		if e = strings.TrimSpace(e); e != "" {
			events = append(events, e)
		}
	}
	return events
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Program == "" {
		return errors.New("program cannot be empty")
	}
	if c.Program != filepath.Base(c.Program) || strings.HasPrefix(c.Program, ".") {
		return fmt.Errorf("program must be a file basename in the working directory, got %q", c.Program)
	}
	if _, err := c.InputRange(); err != nil {
		return err
	}
	if c.Runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", c.Runs)
	}
	if _, ok := UnitFactor(c.TimeUnit); !ok {
		return fmt.Errorf("time unit must be one of s, ms or us, got %q", c.TimeUnit)
	}
	if c.InputName == "" || strings.ContainsFunc(c.InputName, isSpace) {
		return fmt.Errorf("input name must be a single non-empty word, got %q", c.InputName)
	}
	if c.FunctionSet().Len() == 0 {
		return errors.New("at least one function name is required")
	}
	if c.Frequency != MaxFrequency {
		f, err := strconv.Atoi(c.Frequency)
		if err != nil || f <= 0 {
			return fmt.Errorf("frequency must be a positive integer or %q, got %q", MaxFrequency, c.Frequency)
		}
	}
	if c.DataDir == "" {
		return errors.New("data directory cannot be empty")
	}
	if c.Script == "" {
		return errors.New("script path cannot be empty")
	}
	if c.Compiler == "" {
		return errors.New("compiler cannot be empty")
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
