// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/internal/config"
	"github.com/antimetal/perfbench/internal/watch"
	"github.com/antimetal/perfbench/pkg/command"
)

var (
	setupLog logr.Logger

	cliFlags config.Flags
)

func init() {
	cliFlags.BindFlags(flag.CommandLine)
	flag.Usage = func() {
		config.Usage(flag.CommandLine.Output(), flag.CommandLine)
	}
}

func main() {
	flag.Parse()

	logger, err := newLogger(cliFlags.Verbose, cliFlags.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLog = logger.WithName("setup")

	cfg, err := cliFlags.Load(flag.CommandLine)
	if errors.Is(err, config.ErrNotEnoughArgs) {
		// Not enough to do anything; print usage and leave without producing data.
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		config.Usage(os.Stderr, flag.CommandLine)
		os.Exit(0)
	}
	if err != nil {
		setupLog.Error(err, "unable to load configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, command.NewLocal(logger), logger)
	if err != nil {
		setupLog.Error(err, "unable to set up benchmark")
		os.Exit(1)
	}

	if err := s.run(ctx); err != nil {
		setupLog.Error(err, "benchmark failed")
		if !cfg.Watch {
			os.Exit(1)
		}
	}

	if !cfg.Watch {
		return
	}

	source := filepath.Join(cfg.WorkDir, cfg.Program+".c")
	watcher, err := watch.New(source, watch.DefaultDebounce, logger)
	if err != nil {
		setupLog.Error(err, "unable to watch program source")
		os.Exit(1)
	}
	defer watcher.Close()

	if err := watcher.Run(ctx, s.run); err != nil {
		setupLog.Error(err, "watcher stopped")
	}
	setupLog.Info("shutting down")
}
