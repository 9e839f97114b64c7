// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package datafile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sum_array", Normalize("  sum_array "))
	assert.Equal(t, "sum_array", Normalize("sum _ar\tray\n"))
	assert.Equal(t, "", Normalize(" \t "))
}

func TestParseFunctionList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "two functions", input: "sum_array/sum_list", expected: []string{"sum_array", "sum_list"}},
		{name: "whitespace is stripped", input: " sum_array / sum list ", expected: []string{"sum_array", "sumlist"}},
		{name: "empty segments are dropped", input: "a//b/", expected: []string{"a", "b"}},
		{name: "repeats keep first position", input: "b/a/b", expected: []string{"b", "a"}},
		{name: "empty list", input: "", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := ParseFunctionList(tt.input)
			assert.Equal(t, tt.expected, fs.Names())
			assert.Equal(t, len(tt.expected), fs.Len())
		})
	}
}

func TestFunctionSet_Contains(t *testing.T) {
	fs := NewFunctionSet("f", "g")
	assert.True(t, fs.Contains("f"))
	assert.True(t, fs.Contains(" g "))
	assert.False(t, fs.Contains("h"))
	assert.False(t, FunctionSet{}.Contains("f"))
}

func TestHeader(t *testing.T) {
	h := NewHeader("len", NewFunctionSet("sum_array", "sum_list"))
	assert.Equal(t, "# len sum_array sum_list \n", h.String())

	parsed, err := ParseHeader(strings.TrimSuffix(h.String(), "\n"))
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHeader("len sum_array")
	require.ErrorIs(t, err, ErrBadHeader)
	_, err = ParseHeader("#")
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestEventFileName(t *testing.T) {
	assert.Equal(t, "cache-misses.data", EventFileName("cache-misses"))
	assert.Equal(t, "cpu_event=0x3c_.data", EventFileName("cpu/event=0x3c/"))
}

func TestFile_AppendRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TimesFile)
	fns := NewFunctionSet("f", "g")

	f, err := Create(path, NewHeader("n", fns))
	require.NoError(t, err)

	require.NoError(t, f.AppendRow(10, "12.3 0.0 "))
	require.NoError(t, f.Append([]byte("0.5 0.25\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# n f g \n10 12.3 0.0 \n0.5 0.25\n", string(data))

	n, err := CountLines(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, strings.Fields(lines[1]), fns.Len()+1)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, Header{InputName: "n", Columns: []string{"f", "g"}}, h)
}

func TestCreate_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.data")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0644))

	_, err := Create(path, Header{InputName: "n"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# n \n", string(data))
}

func TestReadHeader_Missing(t *testing.T) {
	_, err := ReadHeader(filepath.Join(t.TempDir(), "missing.data"))
	require.Error(t, err)
}

func TestReadHeader_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.data")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	_, err := ReadHeader(path)
	require.ErrorIs(t, err, ErrBadHeader)
}
