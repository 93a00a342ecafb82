package diag

import "strings"

// Snapshot is the ordered diagnostic output of one compilation.
// The summary line is derived from Diagnostics, never stored.
type Snapshot struct {
	Diagnostics []Diagnostic
	// Reported is the summary the compiler printed itself, when it printed one.
	Reported *Summary
}

// NewSnapshot splits a raw stream into diagnostics and the compiler's own
// summary. Failure notes are dropped.
func NewSnapshot(stream []Diagnostic) Snapshot {
	snap := Snapshot{Diagnostics: make([]Diagnostic, 0, len(stream))}
	for i := range stream {
		d := &stream[i]
		if d.FailureNote {
			continue
		}
		if IsSummary(d) {
			sum, _ := ParseSummary(d.Message)
			snap.Reported = &sum
			continue
		}
		snap.Diagnostics = append(snap.Diagnostics, *d)
	}
	return snap
}

// Summary counts the error and warning diagnostics of the snapshot.
func (s Snapshot) Summary() Summary {
	var sum Summary
	for i := range s.Diagnostics {
		switch s.Diagnostics[i].Severity {
		case SevError:
			sum.Errors++
		case SevWarning:
			sum.Warnings++
		}
	}
	return sum
}

// Text renders the snapshot the way it is stored in a .stderr fixture: every
// block followed by a blank line, then the summary line. Blocks come from the
// compiler's rendering when present, otherwise from render.
func (s Snapshot) Text(render func(*Diagnostic) string) string {
	var b strings.Builder
	for i := range s.Diagnostics {
		d := &s.Diagnostics[i]
		block := d.Rendered
		if block == "" && render != nil {
			block = render(d)
		}
		if block == "" {
			block = d.Headline()
		}
		b.WriteString(strings.TrimRight(block, "\n"))
		b.WriteString("\n\n")
	}
	if line := s.Summary().Line(); line != "" {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
