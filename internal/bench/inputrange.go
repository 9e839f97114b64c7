// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bench

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
)

// ErrInvalidRange is returned for an input range that is malformed or would
// never terminate.
var ErrInvalidRange = errors.New("invalid input range")

var rangeExpr = regexp.MustCompile(`^(\d+):(\d+),(\d+)$`)

// InputRange is the swept input domain: Min, Min+Increment, ... up to and
// including Max.
type InputRange struct {
	Min       int `yaml:"min"`
	Max       int `yaml:"max"`
	Increment int `yaml:"increment"`
}

// ParseInputRange parses "min:max,increment", e.g. "1000:10000,1000".
func ParseInputRange(s string) (InputRange, error) {
	m := rangeExpr.FindStringSubmatch(s)
	if m == nil {
		return InputRange{}, fmt.Errorf("%w: %q is not of the form min:max,increment", ErrInvalidRange, s)
	}

	var vals [3]int
	for i := range vals {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return InputRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		vals[i] = v
	}

	r := InputRange{Min: vals[0], Max: vals[1], Increment: vals[2]}
	if err := r.Validate(); err != nil {
		return InputRange{}, err
	}
	return r, nil
}

// Validate rejects a non-positive increment and an empty range.
func (r InputRange) Validate() error {
	if r.Increment <= 0 {
		return fmt.Errorf("%w: increment must be positive, got %d", ErrInvalidRange, r.Increment)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %d is greater than max %d", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// SafeToFit reports whether the range has at least two inputs, the minimum
// for a linear fit.
func (r InputRange) SafeToFit() bool {
	return r.Increment > 0 && r.Min <= r.Max-r.Increment
}

// Inputs yields every input in increasing order, computing each one as it
// is needed. An invalid range yields nothing.
func (r InputRange) Inputs() iter.Seq[int] {
	return func(yield func(int) bool) {
		if r.Validate() != nil {
			return
		}
		for in := r.Min; ; in += r.Increment {
			if !yield(in) {
				return
			}
			// in+Increment would pass Max; compared this way so it cannot overflow.
			if in > r.Max-r.Increment {
				return
			}
		}
	}
}

func (r InputRange) String() string {
	return fmt.Sprintf("%d:%d,%d", r.Min, r.Max, r.Increment)
}
