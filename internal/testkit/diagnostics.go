// Package testkit builds compiler diagnostics for tests in the same shape the
// JSON decoder produces them.
package testkit

import "uitest/internal/diag"

// Option amends a diagnostic under construction.
type Option func(*diag.Diagnostic)

// At builds a primary span covering one line range.
func At(file string, line, colStart, colEnd uint32) diag.Span {
	return diag.Span{
		File:      file,
		LineStart: line,
		LineEnd:   line,
		ColStart:  colStart,
		ColEnd:    colEnd,
		Primary:   true,
	}
}

// New builds a diagnostic with a single primary span.
func New(sev diag.Severity, code diag.Code, primary diag.Span, msg string, opts ...Option) diag.Diagnostic {
	primary.Primary = true
	d := diag.Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
		Spans:    []diag.Span{primary},
	}
	return With(d, opts...)
}

func Error(code diag.Code, primary diag.Span, msg string, opts ...Option) diag.Diagnostic {
	return New(diag.SevError, code, primary, msg, opts...)
}

func Warning(code diag.Code, primary diag.Span, msg string, opts ...Option) diag.Diagnostic {
	return New(diag.SevWarning, code, primary, msg, opts...)
}

// Unlocated builds a diagnostic without spans (e.g. "cannot find crate").
func Unlocated(sev diag.Severity, msg string, opts ...Option) diag.Diagnostic {
	return With(diag.Diagnostic{Severity: sev, Message: msg}, opts...)
}

// With applies opts to a copy of d; d's slices are not shared with the result.
func With(d diag.Diagnostic, opts ...Option) diag.Diagnostic {
	d.Spans = append([]diag.Span(nil), d.Spans...)
	d.Children = append([]diag.Diagnostic(nil), d.Children...)
	d.Suggestions = append([]diag.Suggestion(nil), d.Suggestions...)
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Label adds a secondary labelled span.
func Label(sp diag.Span, text string) Option {
	return func(d *diag.Diagnostic) {
		sp.Primary = false
		sp.Label = text
		d.Spans = append(d.Spans, sp)
	}
}

func Note(msg string) Option {
	return func(d *diag.Diagnostic) {
		d.Children = append(d.Children, diag.Diagnostic{Severity: diag.SevNote, Message: msg})
	}
}

func Help(msg string) Option {
	return func(d *diag.Diagnostic) {
		d.Children = append(d.Children, diag.Diagnostic{Severity: diag.SevHelp, Message: msg})
	}
}

func Suggestion(title string, app diag.Applicability, edits ...diag.Edit) Option {
	return func(d *diag.Diagnostic) {
		d.Suggestions = append(d.Suggestions, diag.Suggestion{
			Title:         title,
			Applicability: app,
			Edits:         edits,
		})
	}
}

// Rendered sets the compiler's own rendering of the block.
func Rendered(text string) Option {
	return func(d *diag.Diagnostic) {
		d.Rendered = text
	}
}
