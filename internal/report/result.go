// Package report classifies per-case outcomes and turns them into the run's
// summary, exit status and machine-readable reports.
package report

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"uitest/internal/coverage"
	"uitest/internal/diag"
	"uitest/internal/directive"
	"uitest/internal/fix"
	"uitest/internal/invoke"
	"uitest/internal/match"
	"uitest/internal/normalize"
	"uitest/internal/observ"
	"uitest/internal/snapshot"
)

// Status is the final classification of a test case.
type Status uint8

const (
	Passed Status = iota
	Failed
	Blessed
	Ignored
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Blessed:
		return "blessed"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// MarshalText keeps JSON reports readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReasonKind groups failures for triage.
type ReasonKind string

const (
	KindParse        ReasonKind = "parse"
	KindInvocation   ReasonKind = "invocation"
	KindCrash        ReasonKind = "crash"
	KindTimeout      ReasonKind = "timeout"
	KindMode         ReasonKind = "mode"
	KindErrorPattern ReasonKind = "error-pattern"
	KindAnnotation   ReasonKind = "annotation"
	KindSummary      ReasonKind = "summary"
	KindSnapshot     ReasonKind = "snapshot"
	KindCoverage     ReasonKind = "coverage"
	KindFix          ReasonKind = "fix"
	KindNormalize    ReasonKind = "normalize"
	KindInternal     ReasonKind = "internal"
)

// Reason is one failure (or warning) of a case, with enough context to act
// on it without rerunning.
type Reason struct {
	Kind     ReasonKind `json:"kind"`
	File     string     `json:"file,omitempty"`
	Line     int        `json:"line,omitempty"`
	Expected string     `json:"expected,omitempty"`
	Actual   string     `json:"actual,omitempty"`
	Message  string     `json:"message"`
	// Detail carries multi-line context such as a unified diff.
	Detail string `json:"detail,omitempty"`
}

func (r Reason) String() string {
	var b strings.Builder
	b.WriteString(string(r.Kind))
	b.WriteString(": ")
	if r.File != "" {
		b.WriteString(r.File)
		if r.Line > 0 {
			fmt.Fprintf(&b, ":%d", r.Line)
		}
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	return b.String()
}

// ReasonFrom classifies err. file is the test or fixture it concerns.
func ReasonFrom(file string, err error) Reason {
	r := Reason{File: file, Message: err.Error(), Kind: KindInternal}

	var (
		pe *directive.ParseError
		ie *invoke.InvocationError
		mm *match.Mismatch
		sm *snapshot.Mismatch
		cm *coverage.Mismatch
		ce *fix.ConvergenceError
		nw *normalize.Warning

		exitErr *exec.ExitError
	)
	switch {
	case errors.As(err, &pe):
		r.Kind, r.File, r.Line, r.Message = KindParse, pe.File, pe.Line, pe.Msg
	case errors.As(err, &ie):
		switch {
		case ie.TimedOut:
			r.Kind = KindTimeout
		case ie.ExitCode > 1 || errors.As(ie.Err, &exitErr):
			// ненулевой код кроме 1 или сигнал
			r.Kind = KindCrash
		default:
			r.Kind = KindInvocation
		}
	case errors.As(err, &mm):
		r.Kind, r.Line, r.Expected, r.Actual = KindAnnotation, mm.Line, mm.Expected, mm.Actual
		r.Message = mm.Kind.String()
	case errors.As(err, &sm):
		r.Kind, r.File, r.Detail = KindSnapshot, sm.Fixture, sm.Unified
		if len(sm.Records) > 0 {
			first := sm.Records[0]
			r.Line = first.ExpectedLine
			if !first.HasExpected {
				r.Line = first.ActualLine
			}
			r.Expected, r.Actual = first.Expected, first.Actual
		}
	case errors.As(err, &cm):
		r.Kind, r.Line, r.Expected, r.Actual = KindCoverage, cm.Line, cm.Expected, cm.Actual
		r.Message = cm.Kind.String()
	case errors.As(err, &ce):
		r.Kind = KindFix
	case errors.As(err, &nw):
		r.Kind, r.Line, r.Actual = KindNormalize, nw.Line, nw.Text
		if nw.Path != "" {
			r.Message = "host path left after normalization: " + nw.Path
		}
	}
	return r
}

// Result is the outcome of one test case.
type Result struct {
	ID       string
	Status   Status
	Reasons  []Reason
	Warnings []Reason
	Blessed  []string // записанные или удалённые фикстуры
	Ignore   string
	Cached   bool // пропущен по штампу
	Duration time.Duration
	Timings  observ.Report
	// Emitted holds the compiler's diagnostics when annotations mismatched;
	// Print renders them under -v.
	Emitted []diag.Diagnostic
}

// Fail appends a failure reason.
func (r *Result) Fail(file string, err error) {
	r.Reasons = append(r.Reasons, ReasonFrom(file, err))
}

// Warn appends a non-fatal reason.
func (r *Result) Warn(file string, err error) {
	r.Warnings = append(r.Warnings, ReasonFrom(file, err))
}

// Crashed reports whether the compiler crashed or could not be started.
func (r *Result) Crashed() bool {
	for _, reason := range r.Reasons {
		if reason.Kind == KindCrash || reason.Kind == KindInvocation {
			return true
		}
	}
	return false
}

// Classify settles Status from the collected reasons unless the case was
// ignored.
func (r *Result) Classify() {
	switch {
	case r.Status == Ignored:
	case len(r.Reasons) > 0:
		r.Status = Failed
	case len(r.Blessed) > 0:
		r.Status = Blessed
	default:
		r.Status = Passed
	}
}

// Summary counts results by status.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Blessed int `json:"blessed"`
	Ignored int `json:"ignored"`
}

// Total is the number of cases.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Blessed + s.Ignored
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed; %d failed; %d blessed; %d ignored", s.Passed, s.Failed, s.Blessed, s.Ignored)
}

// Report is the sorted outcome of a run.
type Report struct {
	Results  []Result
	Summary  Summary
	Bless    bool
	Duration time.Duration
	// Canceled is set when the run was aborted; Results then holds only the
	// cases that finished.
	Canceled bool
}

// Aggregate sorts results by identity and counts them. Completion order does
// not matter.
func Aggregate(results []Result, bless bool) *Report {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	rep := &Report{Results: sorted, Bless: bless}
	for i := range sorted {
		switch sorted[i].Status {
		case Passed:
			rep.Summary.Passed++
		case Failed:
			rep.Summary.Failed++
		case Blessed:
			rep.Summary.Blessed++
		case Ignored:
			rep.Summary.Ignored++
		}
	}
	return rep
}

// ExitCode is 0 when every case passed, was blessed or was ignored. In bless
// mode only a compiler crash makes it non-zero. An aborted run is never 0.
func (r *Report) ExitCode() int {
	if r.Canceled {
		return 1
	}
	if r.Bless {
		for i := range r.Results {
			if r.Results[i].Crashed() {
				return 1
			}
		}
		return 0
	}
	if r.Summary.Failed > 0 {
		return 1
	}
	return 0
}

// Failures returns the failed results in order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == Failed {
			out = append(out, res)
		}
	}
	return out
}
