package diag

import (
	"fmt"
	"strings"
)

// Code is the compiler's error code or lint name, e.g. "E0017" or "unused_mut".
// Empty when the diagnostic carries none.
type Code string

// IsErrorCode reports whether the code has the "E" + four digits shape that
// the human output prints in brackets after the severity.
func (c Code) IsErrorCode() bool {
	if len(c) != 5 || c[0] != 'E' {
		return false
	}
	for i := 1; i < 5; i++ {
		if c[i] < '0' || c[i] > '9' {
			return false
		}
	}
	return true
}

// SpanText is one source line covered by a span, with the highlighted range
// in 1-based character columns.
type SpanText struct {
	Text           string
	HighlightStart uint32
	HighlightEnd   uint32
}

// Span locates a diagnostic in a file. Lines and columns are 1-based,
// columns count characters; byte offsets are 0-based and half-open.
type Span struct {
	File      string
	ByteStart uint32
	ByteEnd   uint32
	LineStart uint32
	LineEnd   uint32
	ColStart  uint32
	ColEnd    uint32
	Primary   bool
	Label     string
	Text      []SpanText
}

// Located reports whether the span points at a real file position.
func (s Span) Located() bool {
	return s.File != "" && s.LineStart > 0
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.LineStart, s.ColStart)
}

// Applicability is the compiler's confidence that a suggestion can be
// applied without human review.
type Applicability uint8

const (
	ApplicabilityUnspecified Applicability = iota
	HasPlaceholders
	MaybeIncorrect
	MachineApplicable
)

func (a Applicability) String() string {
	switch a {
	case MachineApplicable:
		return "MachineApplicable"
	case MaybeIncorrect:
		return "MaybeIncorrect"
	case HasPlaceholders:
		return "HasPlaceholders"
	}
	return "Unspecified"
}

// ParseApplicability maps the JSON "suggestion_applicability" field.
// Unknown or absent values map to ApplicabilityUnspecified.
func ParseApplicability(s string) Applicability {
	switch s {
	case "MachineApplicable":
		return MachineApplicable
	case "MaybeIncorrect":
		return MaybeIncorrect
	case "HasPlaceholders":
		return HasPlaceholders
	}
	return ApplicabilityUnspecified
}

// Edit replaces the text under Span with Replacement.
type Edit struct {
	Span        Span
	Replacement string
}

// Suggestion is one suggested fix. All edits of a suggestion belong together
// and are applied as a unit.
type Suggestion struct {
	Title         string
	Applicability Applicability
	Edits         []Edit
}

// Diagnostic is one message of the compiler's diagnostic stream.
type Diagnostic struct {
	Severity    Severity
	Code        Code
	Message     string
	Spans       []Span
	Children    []Diagnostic
	Suggestions []Suggestion
	// Rendered is the compiler's own human-readable rendering, if it sent one.
	Rendered string
	// FailureNote marks the trailing "For more information..." chatter.
	FailureNote bool
}

// Primary returns the first primary span, falling back to the first span.
func (d *Diagnostic) Primary() (Span, bool) {
	for _, sp := range d.Spans {
		if sp.Primary {
			return sp, true
		}
	}
	if len(d.Spans) > 0 {
		return d.Spans[0], true
	}
	return Span{}, false
}

// Secondary returns the non-primary spans in their original order.
func (d *Diagnostic) Secondary() []Span {
	out := make([]Span, 0, len(d.Spans))
	for _, sp := range d.Spans {
		if !sp.Primary {
			out = append(out, sp)
		}
	}
	return out
}

// Line returns the primary line in file, or 0 when the diagnostic has no
// primary span in that file. An empty file matches any file.
func (d *Diagnostic) Line(file string) uint32 {
	sp, ok := d.Primary()
	if !ok || !sp.Located() {
		return 0
	}
	if file != "" && sp.File != file {
		return 0
	}
	return sp.LineStart
}

// Headline renders the first line of the human output, e.g. "error[E0308]: mismatched types".
func (d *Diagnostic) Headline() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	if d.Code.IsErrorCode() {
		fmt.Fprintf(&b, "[%s]", d.Code)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// MatchText is the text annotation fragments are searched in: the message
// followed by the code in brackets, e.g. "unused variable: `x` [unused_variables]".
func (d *Diagnostic) MatchText() string {
	if d.Code == "" {
		return d.Message
	}
	return d.Message + " [" + string(d.Code) + "]"
}
