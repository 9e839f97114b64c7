// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package plot

import "strings"

// gnuplot accumulates the commands of one gnuplot program, one per line.
type gnuplot struct {
	b strings.Builder
}

func (g *gnuplot) cmd(c string) {
	g.b.WriteString(c)
	g.b.WriteString(";\n")
}

func (g *gnuplot) blank() {
	g.b.WriteByte('\n')
}

// String returns the program without its final newline.
func (g *gnuplot) String() string {
	return strings.TrimSuffix(g.b.String(), "\n")
}

// wrap turns a gnuplot program into a shell command followed by a blank line.
// The program ends up inside a double-quoted shell word.
func wrap(program string) string {
	return `gnuplot -p -e "` + program + "\"\n\n"
}

// shellEscaper escapes what the shell would otherwise expand inside double
// quotes. A backslash before any other character is kept by the shell, so
// gnuplot escapes such as \n survive.
var shellEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"$", `\$`,
	"`", "\\`",
)

// doubleQuoted returns s as a gnuplot double-quoted string, in which \n is a
// line break. Double quotes in s become single quotes.
func doubleQuoted(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	return `\"` + shellEscaper.Replace(s) + `\"`
}

// singleQuoted returns s as a gnuplot single-quoted string, taken literally.
func singleQuoted(s string) string {
	return "'" + shellEscaper.Replace(strings.ReplaceAll(s, "'", "''")) + "'"
}
