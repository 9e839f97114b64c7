// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package command runs external tools from argument vectors.
//
// Nothing in this package goes through a shell: every invocation is an argv
// slice handed to os/exec, so program names, event names and CPU lists that
// come from the command line are never re-parsed as shell syntax.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// ErrEmptyCommand is returned when a Cmd has no arguments.
var ErrEmptyCommand = errors.New("missing command")

// Cmd describes a single subprocess invocation.
type Cmd struct {
	// Args is the argument vector. Args[0] is the program to execute.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Stdout receives the standard output of the process. When nil the
	// output is captured and returned in Result.Stdout.
	Stdout io.Writer
}

// String renders the argv for log and error messages.
func (c Cmd) String() string {
	return strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner starts a process and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Local is a Runner that executes commands on the local system.
type Local struct {
	logger logr.Logger
}

// NewLocal returns a Runner backed by os/exec.
func NewLocal(logger logr.Logger) *Local {
	return &Local{logger: logger.WithName("command")}
}

// Run executes cmd and waits for it. If the process cannot be started or
// exits non-zero, the returned error names the command and carries its
// standard error output.
func (l *Local) Run(ctx context.Context, cmd Cmd) (Result, error) {
	if len(cmd.Args) == 0 {
		return Result{}, ErrEmptyCommand
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}
	c.Stderr = &stderr

	l.logger.V(2).Info("running command", "argv", cmd.Args, "dir", cmd.Dir)
	if err := c.Run(); err != nil {
		return Result{Stderr: stderr.Bytes()}, fmt.Errorf("%s: %w\n%s", cmd, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}
