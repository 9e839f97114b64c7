// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_EmptyCommand(t *testing.T) {
	r := NewLocal(testr.New(t))
	_, err := r.Run(context.Background(), Cmd{})
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestLocal_NotFound(t *testing.T) {
	r := NewLocal(testr.New(t))
	_, err := r.Run(context.Background(), Cmd{Args: []string{"perfbench-definitely-not-a-binary"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
	assert.Contains(t, err.Error(), "perfbench-definitely-not-a-binary")
}

func TestLocal_CapturesAndRedirects(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX echo")
	}
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	r := NewLocal(testr.New(t))

	res, err := r.Run(context.Background(), Cmd{Args: []string{"echo", "a b; rm -rf /"}})
	require.NoError(t, err)
	assert.Equal(t, "a b; rm -rf /\n", string(res.Stdout), "arguments are not shell-interpreted")

	var buf bytes.Buffer
	res, err = r.Run(context.Background(), Cmd{Args: []string{"echo", "redirected"}, Stdout: &buf})
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)
	assert.Equal(t, "redirected\n", buf.String())
}

func TestFake(t *testing.T) {
	f := &Fake{Handler: func(cmd Cmd) (string, error) {
		if cmd.Args[0] == "fail" {
			return "", errors.New("boom")
		}
		return "out:" + cmd.Args[0], nil
	}}

	res, err := f.Run(context.Background(), Cmd{Args: []string{"one"}})
	require.NoError(t, err)
	assert.Equal(t, "out:one", string(res.Stdout))

	var buf bytes.Buffer
	_, err = f.Run(context.Background(), Cmd{Args: []string{"two"}, Stdout: &buf})
	require.NoError(t, err)
	assert.Equal(t, "out:two", buf.String())

	_, err = f.Run(context.Background(), Cmd{Args: []string{"fail"}})
	require.EqualError(t, err, "boom")

	assert.Equal(t, [][]string{{"one"}, {"two"}, {"fail"}}, f.Argvs())
}
