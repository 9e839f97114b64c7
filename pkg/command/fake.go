// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package command

import (
	"context"
	"io"
	"sync"
)

// Fake is a Runner for tests. It records every invocation and answers with
// whatever Handler returns. A nil Handler makes every command succeed with
// no output.
type Fake struct {
	Handler func(cmd Cmd) (stdout string, err error)

	mu    sync.Mutex
	calls []Cmd
}

var _ Runner = (*Fake)(nil)

// Run records cmd and writes the handler's output to cmd.Stdout when set.
func (f *Fake) Run(_ context.Context, cmd Cmd) (Result, error) {
	recorded := cmd
	recorded.Args = append([]string(nil), cmd.Args...)
	f.mu.Lock()
	f.calls = append(f.calls, recorded)
	f.mu.Unlock()

	var (
		out string
		err error
	)
	if f.Handler != nil {
		out, err = f.Handler(cmd)
	}

	if cmd.Stdout != nil {
		if _, werr := io.WriteString(cmd.Stdout, out); werr != nil && err == nil {
			err = werr
		}
		return Result{}, err
	}
	return Result{Stdout: []byte(out)}, err
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Cmd(nil), f.calls...)
}

// Argvs returns just the argument vectors of the recorded invocations.
func (f *Fake) Argvs() [][]string {
	calls := f.Calls()
	argvs := make([][]string, len(calls))
	for i, c := range calls {
		argvs[i] = c.Args
	}
	return argvs
}
