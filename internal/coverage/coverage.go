// Package coverage builds and compares per-line execution-count listings.
package coverage

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Line is one physical source line with its execution count.
type Line struct {
	Number int
	Text   string
	// Instrumented is false for lines the instrumentation does not cover.
	Instrumented bool
	Count        uint64
}

// CountString renders the count column; blank when not instrumented.
func (l Line) CountString() string {
	if !l.Instrumented {
		return ""
	}
	return strconv.FormatUint(l.Count, 10)
}

// Listing has exactly one Line per physical line of the source.
type Listing []Line

// PhysicalLines splits source into lines. A final newline terminates the
// last line instead of opening an empty one.
func PhysicalLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(source, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Build pairs every physical line of source with its count. Lines missing
// from counts are not instrumented; counts for lines past the end are ignored.
func Build(source string, counts map[int]uint64) Listing {
	lines := PhysicalLines(source)
	out := make(Listing, len(lines))
	for i, text := range lines {
		n := i + 1
		c, ok := counts[n]
		out[i] = Line{Number: n, Text: text, Instrumented: ok, Count: c}
	}
	return out
}

// Render formats the listing as a fixture: "%5s|%7s|%s" rows with an "LL"
// gutter when anonymize is set, otherwise the line number.
func (l Listing) Render(anonymize bool) string {
	var b strings.Builder
	for _, line := range l {
		gutter := "LL"
		if !anonymize {
			gutter = strconv.Itoa(line.Number)
		}
		fmt.Fprintf(&b, "%5s|%7s|%s\n", gutter, line.CountString(), line.Text)
	}
	return b.String()
}

// Parse reads a rendered listing back. Line numbers are positional, so
// anonymized and numbered gutters parse the same way.
func Parse(fixture string) (Listing, error) {
	var out Listing
	for i, row := range PhysicalLines(fixture) {
		gutter, rest, ok := strings.Cut(row, "|")
		if !ok {
			return nil, fmt.Errorf("coverage fixture line %d: missing '|' separator", i+1)
		}
		countCol, text, ok := strings.Cut(rest, "|")
		if !ok {
			return nil, fmt.Errorf("coverage fixture line %d: missing count column", i+1)
		}
		gutter = strings.TrimSpace(gutter)
		if gutter != "LL" {
			if n, err := strconv.Atoi(gutter); err != nil || n != i+1 {
				return nil, fmt.Errorf("coverage fixture line %d: bad gutter %q", i+1, gutter)
			}
		}
		line := Line{Number: i + 1, Text: text}
		if c := strings.TrimSpace(countCol); c != "" {
			n, err := strconv.ParseUint(c, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("coverage fixture line %d: bad count %q", i+1, c)
			}
			line.Instrumented = true
			line.Count = n
		}
		out = append(out, line)
	}
	return out, nil
}

// ParseCounts reads "<line>:<count>" records, one per line, as printed by
// the coverage tool. Repeated lines are summed.
func ParseCounts(text string) (map[int]uint64, error) {
	counts := make(map[int]uint64)
	sc := bufio.NewScanner(strings.NewReader(text))
	rec := 0
	for sc.Scan() {
		rec++
		row := strings.TrimSpace(sc.Text())
		if row == "" {
			continue
		}
		l, c, ok := strings.Cut(row, ":")
		if !ok {
			return nil, fmt.Errorf("coverage record %d: expected <line>:<count>, got %q", rec, row)
		}
		line, err := strconv.Atoi(strings.TrimSpace(l))
		if err != nil || line < 1 {
			return nil, fmt.Errorf("coverage record %d: bad line %q", rec, l)
		}
		count, err := strconv.ParseUint(strings.TrimSpace(c), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coverage record %d: bad count %q", rec, c)
		}
		counts[line] += count
	}
	return counts, sc.Err()
}
