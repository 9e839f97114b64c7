// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package perfevents narrows a requested list of perf events down to those
// the host's perf tool knows about.
//
// Passing an unknown event to `perf record -e` makes perf refuse to run at
// all, so one misspelled name would otherwise abort a whole benchmark.
package perfevents

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/perfbench/pkg/command"
)

// Filter returns the requested events that appear anywhere in listing, in
// request order. Matching is plain substring containment, so "cycles" is
// accepted whenever any listed event contains it. Blank names are dropped.
func Filter(requested []string, listing string) []string {
	supported := []string{}
	for _, event := range requested {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		if strings.Contains(listing, event) {
			supported = append(supported, event)
		}
	}
	return supported
}

// Lister queries the host's perf tool for its event listing.
type Lister struct {
	runner command.Runner
	sudo   bool
	logger logr.Logger
}

// NewLister returns a Lister. With sudo set, perf is run through sudo, since
// unprivileged `perf list` reports only a small subset of events.
func NewLister(runner command.Runner, sudo bool, logger logr.Logger) *Lister {
	return &Lister{
		runner: runner,
		sudo:   sudo,
		logger: logger.WithName("perfevents"),
	}
}

// Listing returns the raw output of `perf list`.
//
// `perf list --no-desc` would be easier to match exactly but is broken on
// some perf releases, so the full listing is used.
func (l *Lister) Listing(ctx context.Context) (string, error) {
	args := []string{"perf", "list"}
	if l.sudo {
		args = append([]string{"sudo"}, args...)
	}
	res, err := l.runner.Run(ctx, command.Cmd{Args: args})
	if err != nil {
		return "", fmt.Errorf("failed to list perf events: %w", err)
	}
	return string(res.Stdout), nil
}

// Supported lists the host's events and filters requested against them.
// Dropped events are logged, never returned as errors.
func (l *Lister) Supported(ctx context.Context, requested []string) ([]string, error) {
	listing, err := l.Listing(ctx)
	if err != nil {
		return nil, err
	}

	supported := Filter(requested, listing)
	kept := make(map[string]struct{}, len(supported))
	for _, e := range supported {
		kept[e] = struct{}{}
	}
	for _, e := range requested {
		e = strings.TrimSpace(e)
		if _, ok := kept[e]; !ok && e != "" {
			l.logger.V(1).Info("dropping unsupported perf event", "event", e)
		}
	}

	l.logger.Info("perf events selected", "requested", len(requested), "supported", supported)
	return supported, nil
}
