// Package libdiff computes line diffs of rendered traces.
package libdiff

import (
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one line of a diff.  Op is '-', '+' or ' '.
type Line struct {
	Op   byte
	Text string
}

func (l Line) String() string {
	return string(l.Op) + " " + l.Text
}

// DiffLines diffs from and to line by line.  It returns nil when they are
// equal.
func DiffLines(from, to string) []Line {
	if from == to {
		return nil
	}
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	var res []Line
	for i := range diffs {
		diff := &diffs[i]
		var op byte
		switch diff.Type {
		case diffpatch.DiffInsert:
			op = '+'
		case diffpatch.DiffDelete:
			op = '-'
		case diffpatch.DiffEqual:
			op = ' '
		}
		for _, text := range splitLines(diff.Text) {
			res = append(res, Line{Op: op, Text: text})
		}
	}
	return res
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}

// DiffString renders DiffLines, one line per diff line.  Lines common to
// both sides are kept as context.  It returns "" when from and to are
// equal.
func DiffString(from, to string) string {
	lines := DiffLines(from, to)
	if lines == nil {
		return ""
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (ins, del int) {
	for _, l := range lines {
		switch l.Op {
		case '+':
			ins++
		case '-':
			del++
		}
	}
	return
}
