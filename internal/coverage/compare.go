package coverage

import "fmt"

// MismatchKind separates structural instrumentation regressions from
// control-flow count changes.
type MismatchKind uint8

const (
	TextMismatch MismatchKind = iota
	CountMismatch
	// InstrumentationMismatch is an explicit count on one side and
	// "not instrumented" on the other.
	InstrumentationMismatch
	LengthMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case TextMismatch:
		return "text mismatch"
	case CountMismatch:
		return "count mismatch"
	case InstrumentationMismatch:
		return "instrumentation mismatch"
	case LengthMismatch:
		return "listing length mismatch"
	}
	return "unknown"
}

// Mismatch is one line-scoped coverage difference.
type Mismatch struct {
	Kind     MismatchKind
	Line     int
	Expected string
	Actual   string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("line %d: %s: expected %s, got %s", m.Line, m.Kind, m.Expected, m.Actual)
}

func describeCount(l Line) string {
	if !l.Instrumented {
		return "not instrumented"
	}
	return fmt.Sprintf("count %d", l.Count)
}

// Compare checks actual against expected line by line. Lines beyond the
// shorter listing produce a single LengthMismatch.
func Compare(expected, actual Listing) []Mismatch {
	var out []Mismatch
	n := min(len(expected), len(actual))
	for i := 0; i < n; i++ {
		e, a := expected[i], actual[i]
		if e.Text != a.Text {
			out = append(out, Mismatch{Kind: TextMismatch, Line: i + 1, Expected: fmt.Sprintf("%q", e.Text), Actual: fmt.Sprintf("%q", a.Text)})
			continue
		}
		switch {
		case e.Instrumented != a.Instrumented:
			out = append(out, Mismatch{Kind: InstrumentationMismatch, Line: i + 1, Expected: describeCount(e), Actual: describeCount(a)})
		case e.Instrumented && e.Count != a.Count:
			out = append(out, Mismatch{Kind: CountMismatch, Line: i + 1, Expected: describeCount(e), Actual: describeCount(a)})
		}
	}
	if len(expected) != len(actual) {
		out = append(out, Mismatch{
			Kind:     LengthMismatch,
			Line:     n + 1,
			Expected: fmt.Sprintf("%d lines", len(expected)),
			Actual:   fmt.Sprintf("%d lines", len(actual)),
		})
	}
	return out
}
