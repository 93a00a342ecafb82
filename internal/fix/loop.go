package fix

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"uitest/internal/diag"
)

// State is a step of the fix loop.
type State uint8

const (
	Invoking State = iota
	Applying
	Reverifying
	Converged
	Exceeded
	Failed
)

func (s State) String() string {
	switch s {
	case Invoking:
		return "invoking"
	case Applying:
		return "applying"
	case Reverifying:
		return "reverifying"
	case Converged:
		return "converged"
	case Exceeded:
		return "exceeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// DefaultMaxRounds bounds the loop when the caller sets no limit.
const DefaultMaxRounds = 4

// CompileFunc compiles the patched source and returns its diagnostic stream.
// Span file names must already be mapped back onto Loop.File; the runner
// writes a scratch copy and normalizes its paths to the test's ID.
type CompileFunc func(ctx context.Context, src []byte) ([]diag.Diagnostic, error)

// Loop applies suggested patches and recompiles until the compiler reports
// no errors or the round limit is hit.
type Loop struct {
	File        string // имя файла в спанах после нормализации: ID теста, не путь scratch-копии
	MaxRounds   int
	MachineOnly bool
	Compile     CompileFunc
	// OnTransition observes every state change; may be nil.
	OnTransition func(from, to State, round int)
}

// Outcome is the result of a finished loop.
type Outcome struct {
	State   State
	Rounds  int
	Fixed   []byte
	Final   []diag.Diagnostic
	Skipped []SkippedFix
}

// Run starts from the diagnostics of the first invocation of original. With
// no suggestions at all the loop converges after zero rounds and Fixed equals
// the original.
func (l *Loop) Run(ctx context.Context, original []byte, initial []diag.Diagnostic) (*Outcome, error) {
	if l.Compile == nil {
		return nil, errors.New("fix: loop has no compile function")
	}
	limit := l.MaxRounds
	if limit <= 0 {
		limit = DefaultMaxRounds
	}

	out := &Outcome{Fixed: append([]byte(nil), original...), Final: initial}
	state := Invoking
	move := func(to State) {
		if l.OnTransition != nil {
			l.OnTransition(state, to, out.Rounds)
		}
		state = to
	}

	for {
		if err := ctx.Err(); err != nil {
			move(Failed)
			out.State = state
			return out, err
		}
		switch state {
		case Invoking:
			// первая компиляция уже сделана вызывающим
			move(Applying)

		case Applying:
			patches, skipped := Collect(out.Final, l.File, l.MachineOnly)
			out.Skipped = append(out.Skipped, skipped...)
			errs := countErrors(out.Final)
			if len(patches) == 0 {
				if out.Rounds > 0 && errs > 0 {
					move(Failed)
					out.State = state
					return out, &ConvergenceError{Kind: Stuck, Round: out.Rounds, Errors: errs}
				}
				move(Converged)
				out.State = state
				return out, nil
			}
			if out.Rounds >= limit {
				move(Exceeded)
				out.State = state
				return out, &ConvergenceError{Kind: Exceeded, Round: out.Rounds, Errors: errs}
			}
			out.Rounds++
			res, err := Apply(l.File, out.Fixed, patches)
			if err != nil {
				move(Failed)
				out.State = state
				var ce *ConvergenceError
				if errors.As(err, &ce) {
					ce.Round = out.Rounds
				}
				return out, err
			}
			out.Skipped = append(out.Skipped, res.Skipped...)
			if bytes.Equal(res.Output, out.Fixed) {
				if errs == 0 {
					move(Converged)
					out.State = state
					return out, nil
				}
				move(Failed)
				out.State = state
				return out, &ConvergenceError{Kind: Stuck, Round: out.Rounds, Errors: errs}
			}
			out.Fixed = res.Output
			move(Reverifying)

		case Reverifying:
			diags, err := l.Compile(ctx, out.Fixed)
			if err != nil {
				move(Failed)
				out.State = state
				return out, fmt.Errorf("round %d: recompile: %w", out.Rounds, err)
			}
			out.Final = diags
			if countErrors(diags) == 0 {
				move(Converged)
				out.State = state
				return out, nil
			}
			move(Applying)
		}
	}
}

func countErrors(diags []diag.Diagnostic) int {
	n := 0
	for i := range diags {
		if diags[i].Severity == diag.SevError && !diag.IsSummary(&diags[i]) {
			n++
		}
	}
	return n
}
