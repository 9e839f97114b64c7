// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Flags holds the optional command-line flags. Positional arguments are
// handled by FromArgs.
type Flags struct {
	ConfigFile string
	WorkDir    string
	DataDir    string
	Script     string
	Compiler   string
	CFlags     string
	Sudo       bool
	RunPlot    bool
	Watch      bool
	Verbose    bool
	LogFormat  string
}

// BindFlags registers the flags on fs.
func (f *Flags) BindFlags(fs *flag.FlagSet) {
	def := DefaultConfig()
	fs.StringVar(&f.ConfigFile, "config", "",
		"YAML file providing any of the benchmark settings. Positional arguments, when given, override it")
	fs.StringVar(&f.WorkDir, "workdir", def.WorkDir,
		"Directory holding <program>.c. Commands run and outputs are written here")
	fs.StringVar(&f.DataDir, "data-dir", def.DataDir,
		"Directory for data files, relative to -workdir. It is deleted and recreated on every run")
	fs.StringVar(&f.Script, "script", def.Script,
		"Path of the generated plot script, relative to -workdir")
	fs.StringVar(&f.Compiler, "cc", def.Compiler, "C compiler used to build the program")
	fs.StringVar(&f.CFlags, "cflags", strings.Join(def.CFlags, " "), "Flags passed to the C compiler")
	fs.BoolVar(&f.Sudo, "sudo", def.Sudo,
		"Run perf through sudo. Unprivileged perf lists and records far fewer events")
	fs.BoolVar(&f.RunPlot, "plot", def.RunPlot, "Run the generated plot script when the benchmark finishes")
	fs.BoolVar(&f.Watch, "watch", false, "Re-run the benchmark whenever <program>.c changes")
	fs.BoolVar(&f.Verbose, "verbose", false, "Enable verbose logging")
	fs.StringVar(&f.LogFormat, "log-format", "auto", "Log format: 'auto', 'console' or 'json'")
}

// Apply copies every flag explicitly set on fs into cfg. Unset flags leave
// values from the config file alone.
func (f *Flags) Apply(fs *flag.FlagSet, cfg Config) Config {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "workdir":
			cfg.WorkDir = f.WorkDir
		case "data-dir":
			cfg.DataDir = f.DataDir
		case "script":
			cfg.Script = f.Script
		case "cc":
			cfg.Compiler = f.Compiler
		case "cflags":
			cfg.CFlags = strings.Fields(f.CFlags)
		case "sudo":
			cfg.Sudo = f.Sudo
		case "plot":
			cfg.RunPlot = f.RunPlot
		case "watch":
			cfg.Watch = f.Watch
		}
	})
	return cfg
}

// Load builds the configuration from parsed flags and the positional
// arguments left over on fs. Without a config file all positional arguments
// are required; with one they are optional, but must be complete when given.
func (f *Flags) Load(fs *flag.FlagSet) (Config, error) {
	cfg := DefaultConfig()

	if f.ConfigFile != "" {
		var err error
		cfg, err = LoadFile(f.ConfigFile, cfg)
		if err != nil {
			return Config{}, err
		}
	}

	if args := fs.Args(); len(args) > 0 || f.ConfigFile == "" {
		var err error
		cfg, err = FromArgs(args, cfg)
		if err != nil {
			return Config{}, err
		}
	}

	cfg = f.Apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Usage writes the command synopsis and flag defaults.
func Usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [flags] <program> <min:max,increment> <runs> <s|ms|us> "+
		"<input_name> <input_display_name> <fn1/fn2/...> <true|false> <event1,event2,...> <frequency|max>\n\n", fs.Name())
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}
