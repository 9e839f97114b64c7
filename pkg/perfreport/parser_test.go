// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package perfreport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/perfbench/pkg/datafile"
)

const realReport = `# To display the perf.data header info, please use --header/--header-only options.
#
#
# Total Lost Samples: 0
#
# Samples: 4K of event 'cache-misses'
# Event count (approx.): 1523688
#
# Overhead  Command  Shared Object      Symbol
# ........  .......  .................  ..............................
#
    61.27%  sum      sum                [.] sum_list
    30.02%  sum      sum                [.] sum_array
     4.50%  sum      [kernel.kallsyms]  [k] clear_page_erms
     0.01%  sum      libc.so.6          [.] __memset_avx2_unaligned_erms


# Samples: 5K of event 'instructions'
# Event count (approx.): 3312000000
#
# Overhead  Command  Shared Object      Symbol
# ........  .......  .................  ..............................
#
    48.90%  sum      sum                [.] sum_array
    47.10%  sum      sum                [.] sum_list
     1.00%  sum      [kernel.kallsyms]  [k] sum_list_helper


#
# (Cannot load tips.txt file, please install perf!)
#
`

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected Line
	}{
		{
			name:     "event header",
			line:     "# Samples: 4K of event 'cache-misses'",
			expected: Line{Kind: KindHeader, Event: "cache-misses"},
		},
		{
			name:     "event header with modifier",
			line:     "# Samples: 12  of event 'cycles:u'",
			expected: Line{Kind: KindHeader, Event: "cycles:u"},
		},
		{
			name:     "user symbol",
			line:     "    61.27%  sum      sum                [.] sum_list",
			expected: Line{Kind: KindData, Percent: "61.27", Symbol: "sum_list"},
		},
		{
			name:     "kernel symbol",
			line:     "     4.50%  sum      [kernel.kallsyms]  [k] clear_page_erms",
			expected: Line{Kind: KindData, Percent: "4.50", Symbol: "clear_page_erms"},
		},
		{
			name:     "comment",
			line:     "# Event count (approx.): 1523688",
			expected: Line{Kind: KindOther},
		},
		{
			name:     "column ruler",
			line:     "# ........  .......  .................  ....",
			expected: Line{Kind: KindOther},
		},
		{
			name:     "integer percentage is not a data line",
			line:     "    61%  sum      sum                [.] sum_list",
			expected: Line{Kind: KindOther},
		},
		{
			name:     "blank",
			line:     "",
			expected: Line{Kind: KindOther},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.line))
		})
	}
}

func TestParse_MissingFunctionsDefaultToZero(t *testing.T) {
	report := "# Samples: 10 of event 'E1'\n" +
		"    12.3%  prog  prog  [.] f\n" +
		"# Samples: 10 of event 'E2'\n" +
		"    50.0%  prog  prog  [.] other\n"

	got := Parse(report, datafile.NewFunctionSet("f", "g"))
	assert.Equal(t, []string{"E1", "E2"}, got.Events)
	assert.Equal(t, map[string]string{
		"E1": "12.3 0.0 ",
		"E2": "0.0 0.0 ",
	}, got.Rows)
}

func TestParse_RealReport(t *testing.T) {
	fns := datafile.NewFunctionSet("sum_array", "sum_list", "not_sampled")
	got := Parse(realReport, fns)

	assert.Equal(t, []string{"cache-misses", "instructions"}, got.Events)

	row, ok := got.Row("cache-misses")
	require.True(t, ok)
	assert.Equal(t, "30.02 61.27 0.0 ", row)

	row, ok = got.Row("instructions")
	require.True(t, ok)
	assert.Equal(t, "48.90 47.10 0.0 ", row)

	for _, event := range got.Events {
		row, _ := got.Row(event)
		assert.Len(t, strings.Fields(row), fns.Len())
	}
}

func TestParse_LastOccurrenceWins(t *testing.T) {
	report := "# Samples: 1 of event 'cycles'\n" +
		"    10.00%  a  a  [.] f\n" +
		"     5.00%  a  a  [.] f\n"

	got := Parse(report, datafile.NewFunctionSet("f"))
	assert.Equal(t, "5.00 ", got.Rows["cycles"])
}

func TestParse_NoHeaders(t *testing.T) {
	tests := []string{
		"",
		"Error:\nThe perf.data data has no samples!\n",
		"    10.00%  a  a  [.] f\n",
	}
	for _, report := range tests {
		got := Parse(report, datafile.NewFunctionSet("f"))
		assert.Equal(t, 0, got.Len())
		assert.Empty(t, got.Rows)
	}
}

func TestParse_DataBeforeFirstHeaderIgnored(t *testing.T) {
	report := "    99.00%  a  a  [.] f\n" +
		"# Samples: 1 of event 'cycles'\n"

	got := Parse(report, datafile.NewFunctionSet("f"))
	assert.Equal(t, map[string]string{"cycles": "0.0 "}, got.Rows)
}

func TestParse_ConcatenatedReports(t *testing.T) {
	fns := datafile.NewFunctionSet("f", "g")
	first := "# Samples: 1 of event 'A'\n" +
		"    10.00%  p  p  [.] f\n" +
		"    20.00%  p  p  [.] g\n"
	second := "# Samples: 1 of event 'B'\n" +
		"    30.00%  p  p  [.] g\n"

	a := Parse(first, fns)
	b := Parse(second, fns)
	combined := Parse(first+second, fns)

	union := map[string]string{}
	for k, v := range a.Rows {
		union[k] = v
	}
	for k, v := range b.Rows {
		union[k] = v
	}
	assert.Equal(t, union, combined.Rows)
	assert.Equal(t, "0.0 30.00 ", combined.Rows["B"], "values from block A must not leak into block B")
	assert.Equal(t, []string{"A", "B"}, combined.Events)
}

func TestParse_RepeatedEventKeepsFirstPosition(t *testing.T) {
	report := "# Samples: 1 of event 'A'\n" +
		"    10.00%  p  p  [.] f\n" +
		"# Samples: 1 of event 'B'\n" +
		"# Samples: 1 of event 'A'\n" +
		"    40.00%  p  p  [.] f\n"

	got := Parse(report, datafile.NewFunctionSet("f"))
	assert.Equal(t, []string{"A", "B"}, got.Events)
	assert.Equal(t, "40.00 ", got.Rows["A"])
}

func TestParseReader(t *testing.T) {
	got, err := ParseReader(strings.NewReader(realReport), datafile.NewFunctionSet("sum_list"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"cache-misses": "61.27 ",
		"instructions": "47.10 ",
	}, got.Rows)
}

func TestParser_EmptyFunctionSet(t *testing.T) {
	got := Parse(realReport, datafile.NewFunctionSet())
	assert.Equal(t, map[string]string{"cache-misses": "", "instructions": ""}, got.Rows)
}
