// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package perfreport

import "regexp"

// Kind is the kind of a perf report line.
type Kind int

const (
	// KindOther is any line the parser ignores.
	KindOther Kind = iota
	// KindHeader starts the block of one event, e.g.
	//	# Samples: 4K of event 'cache-misses'
	KindHeader
	// KindData is one symbol's share of the samples, e.g.
	//	    45.12%  sum      sum                [.] sum_list
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	default:
		return "other"
	}
}

var (
	headerExpr = regexp.MustCompile(`^#.*of event '(.+)'`)
	// The overhead column, then anything up to the last "[x]" marker that
	// is followed by a symbol.
	dataExpr = regexp.MustCompile(`^\s*(\d+\.\d+)%\s*.+\[\S+\]\s*(\S+)`)
)

// Line is one classified report line.
type Line struct {
	Kind Kind
	// Event is set for KindHeader.
	Event string
	// Percent is the overhead exactly as printed, without the '%'. Set for KindData.
	Percent string
	// Symbol is the raw symbol token. Set for KindData.
	Symbol string
}

// Classify lexes a single report line.
func Classify(line string) Line {
	if m := headerExpr.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindHeader, Event: m[1]}
	}
	if m := dataExpr.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindData, Percent: m[1], Symbol: m[2]}
	}
	return Line{Kind: KindOther}
}
