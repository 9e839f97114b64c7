// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package datafile reads and writes the whitespace-delimited data files a
// benchmark produces.
//
// A data file starts with a header naming its columns,
//
//	# <input_name> <function_1> ... <function_n>
//
// followed by one row per run, the input value first. Files are only ever
// appended to, and each append opens and closes the file so an interrupted
// benchmark leaves at most one partial line behind.
package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Ext is the extension of every data file.
	Ext = ".data"
	// TimesFile is the file the benchmarked program's timing output goes to.
	TimesFile = "times" + Ext
	// ZeroValue is written for a function with no samples.
	ZeroValue = "0.0"

	headerMarker = "#"
)

// ErrBadHeader is returned when the first line of a data file is not a header.
var ErrBadHeader = errors.New("invalid data file header")

// EventFileName returns the data file name for a perf event. Path
// separators in the event name are replaced so the file stays in the data
// directory.
func EventFileName(event string) string {
	return strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(event) + Ext
}

// Header is the parsed first line of a data file.
type Header struct {
	InputName string
	Columns   []string
}

// NewHeader returns the header for a file keyed by inputName with one
// column per function.
func NewHeader(inputName string, functions FunctionSet) Header {
	return Header{InputName: inputName, Columns: functions.Names()}
}

// String renders the header line, newline included. Every name is followed by
// a single space.
func (h Header) String() string {
	var b strings.Builder
	b.WriteString(headerMarker + " " + h.InputName + " ")
	for _, c := range h.Columns {
		b.WriteString(c)
		b.WriteByte(' ')
	}
	b.WriteByte('\n')
	return b.String()
}

// File is an append-only data file.
type File struct {
	Path string
}

// Create creates (or truncates) the file at path and writes header to it.
func Create(path string, header Header) (File, error) {
	if err := os.WriteFile(path, []byte(header.String()), 0644); err != nil {
		return File{}, fmt.Errorf("failed to create data file: %w", err)
	}
	return File{Path: path}, nil
}

// OpenAppend opens the file for a single batch of appends. The caller closes it.
func (f File) OpenAppend() (*os.File, error) {
	return os.OpenFile(f.Path, os.O_APPEND|os.O_WRONLY, 0)
}

// Append writes p at the end of the file.
func (f File) Append(p []byte) error {
	w, err := f.OpenAppend()
	if err != nil {
		return fmt.Errorf("failed to open data file for append: %w", err)
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		return fmt.Errorf("failed to append to %s: %w", filepath.Base(f.Path), err)
	}
	return w.Close()
}

// AppendRow writes the line "<input> <row>".
func (f File) AppendRow(input int, row string) error {
	return f.Append([]byte(strconv.Itoa(input) + " " + row + "\n"))
}

// ReadHeader parses the first line of the data file at path.
func ReadHeader(path string) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Header{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return Header{}, fmt.Errorf("%w: %s is empty", ErrBadHeader, path)
	}
	return ParseHeader(scanner.Text())
}

// ParseHeader parses a header line.
func ParseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != headerMarker {
		return Header{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	return Header{InputName: fields[1], Columns: fields[2:]}, nil
}

// CountLines returns the number of newline-terminated lines in the file.
func CountLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strings.Count(string(data), "\n"), nil
}
