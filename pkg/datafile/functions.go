// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package datafile

import (
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
)

// FunctionListSeparator separates function names on the command line. '/'
// cannot appear in a C identifier.
const FunctionListSeparator = "/"

// Normalize strips every whitespace character from a function name. Both
// users and perf report pad symbol names, so names are compared in this form.
func Normalize(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// FunctionSet is an ordered set of normalized function names. The order is
// the column order of every data file.
type FunctionSet struct {
	names   []string
	members mapset.Set[string]
}

// NewFunctionSet normalizes names, dropping empty ones and repeats while
// keeping first-seen order.
func NewFunctionSet(names ...string) FunctionSet {
	s := FunctionSet{members: mapset.NewThreadUnsafeSet[string]()}
	for _, name := range names {
		name = Normalize(name)
		if name == "" || s.members.Contains(name) {
			continue
		}
		s.members.Add(name)
		s.names = append(s.names, name)
	}
	return s
}

// ParseFunctionList splits a '/'-delimited list such as "sum_array/sum_list".
func ParseFunctionList(list string) FunctionSet {
	return NewFunctionSet(strings.Split(list, FunctionListSeparator)...)
}

// Names returns the names in column order.
func (s FunctionSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of names.
func (s FunctionSet) Len() int { return len(s.names) }

// Contains reports whether the normalized form of name is in the set.
func (s FunctionSet) Contains(name string) bool {
	if s.members == nil {
		return false
	}
	return s.members.Contains(Normalize(name))
}
