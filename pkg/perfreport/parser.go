// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package perfreport turns the text printed by `perf report --stdio` into one
// row of per-function sample percentages per event.
//
// A function that never shows up under an event keeps a value of 0.0. That
// covers functions below perf's reporting threshold, functions that were
// inlined away, and names the user mistyped.
package perfreport

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/antimetal/perfbench/pkg/datafile"
)

// Report maps event names to data rows. Events keeps the order in which
// the event headers first appeared.
type Report struct {
	Events []string
	Rows   map[string]string
}

// Len returns the number of events in the report.
func (r Report) Len() int { return len(r.Events) }

// Row returns the row for event.
func (r Report) Row(event string) (string, bool) {
	row, ok := r.Rows[event]
	return row, ok
}

// Parser is the state machine behind Parse. Feed it lines in order and call
// Finish once.
type Parser struct {
	functions datafile.FunctionSet

	// current is the event of the block being read; valid when inBlock.
	current string
	inBlock bool
	acc     map[string]string

	report Report
}

// NewParser returns a Parser tracking functions.
func NewParser(functions datafile.FunctionSet) *Parser {
	return &Parser{
		functions: functions,
		report:    Report{Rows: make(map[string]string)},
	}
}

// Feed advances the state machine by one line.
func (p *Parser) Feed(line string) {
	l := Classify(line)
	switch l.Kind {
	case KindHeader:
		p.onHeader(l.Event)
	case KindData:
		p.onData(l.Percent, l.Symbol)
	}
}

// Finish flushes the last block and returns the report. Input without any
// event header yields an empty report.
func (p *Parser) Finish() Report {
	p.flush()
	p.inBlock = false
	return p.report
}

func (p *Parser) onHeader(event string) {
	p.flush()

	p.current = event
	p.inBlock = true
	p.acc = make(map[string]string, p.functions.Len())
	for _, name := range p.functions.Names() {
		p.acc[name] = datafile.ZeroValue
	}
}

// onData records a symbol's percentage. A function listed more than once
// under one event (several call paths) keeps the value of its last line;
// the values are not summed.
func (p *Parser) onData(percent, symbol string) {
	if !p.inBlock {
		return
	}
	name := datafile.Normalize(symbol)
	if !p.functions.Contains(name) {
		return
	}
	p.acc[name] = percent
}

func (p *Parser) flush() {
	if !p.inBlock {
		return
	}
	if _, seen := p.report.Rows[p.current]; !seen {
		p.report.Events = append(p.report.Events, p.current)
	}
	p.report.Rows[p.current] = p.row()
}

// row renders the accumulator in function order, each value followed by a
// space.
func (p *Parser) row() string {
	var b strings.Builder
	for _, name := range p.functions.Names() {
		b.WriteString(p.acc[name])
		b.WriteByte(' ')
	}
	return b.String()
}

// Parse parses report text.
func Parse(text string, functions datafile.FunctionSet) Report {
	p := NewParser(functions)
	for _, line := range strings.Split(text, "\n") {
		p.Feed(strings.TrimSuffix(line, "\r"))
	}
	return p.Finish()
}

// ParseReader parses a report from r.
func ParseReader(r io.Reader, functions datafile.FunctionSet) (Report, error) {
	p := NewParser(functions)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.Feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("failed to read perf report: %w", err)
	}
	return p.Finish(), nil
}
