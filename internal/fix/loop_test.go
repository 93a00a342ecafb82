package fix

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"uitest/internal/diag"
	"uitest/internal/testkit"
)

type transition struct {
	From, To State
	Round    int
}

// scripted returns the queued diagnostics one compile at a time and records
// every source it was asked to compile.
type scripted struct {
	rounds  [][]diag.Diagnostic
	sources []string
}

func (s *scripted) compile(_ context.Context, src []byte) ([]diag.Diagnostic, error) {
	s.sources = append(s.sources, string(src))
	if len(s.sources) > len(s.rounds) {
		return nil, errors.New("unexpected compile")
	}
	return s.rounds[len(s.sources)-1], nil
}

func newLoop(s *scripted, maxRounds int, log *[]transition) *Loop {
	return &Loop{
		File:      scratch,
		MaxRounds: maxRounds,
		Compile:   s.compile,
		OnTransition: func(from, to State, round int) {
			if log != nil {
				*log = append(*log, transition{from, to, round})
			}
		},
	}
}

func TestLoopConvergesInOneRound(t *testing.T) {
	initial := []diag.Diagnostic{
		suggesting("no method named `size` found", diag.MachineApplicable, replace(10, 20, 30, "Old.len()")),
		{Severity: diag.SevError, Message: "aborting due to 1 previous error"},
	}
	comp := &scripted{rounds: [][]diag.Diagnostic{nil}}
	var log []transition
	original := []byte(fixture)

	out, err := newLoop(comp, 3, &log).Run(context.Background(), original, initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != Converged || out.Rounds != 1 {
		t.Fatalf("expected converged after 1 round, got %v after %d", out.State, out.Rounds)
	}
	want := strings.Replace(fixture, "old.size()", "Old.len()", 1)
	if diff := cmp.Diff(want, string(out.Fixed)); diff != "" {
		t.Fatalf("fixed source mismatch (-want +got):\n%s", diff)
	}
	if string(original) != fixture {
		t.Fatal("original source was modified")
	}
	if len(comp.sources) != 1 || comp.sources[0] != want {
		t.Fatalf("expected one recompile of the patched source, got %d", len(comp.sources))
	}
	wantLog := []transition{
		{Invoking, Applying, 0},
		{Applying, Reverifying, 1},
		{Reverifying, Converged, 1},
	}
	if diff := cmp.Diff(wantLog, log); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopConvergesInTwoRounds(t *testing.T) {
	initial := []diag.Diagnostic{
		suggesting("no method named `size` found", diag.MachineApplicable, replace(10, 20, 30, "Old.len()")),
	}
	second := []diag.Diagnostic{
		suggesting("no method named `len` found", diag.MachineApplicable, insert(6, 5, "pub ")),
	}
	comp := &scripted{rounds: [][]diag.Diagnostic{second, nil}}

	out, err := newLoop(comp, 3, nil).Run(context.Background(), []byte(fixture), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != Converged || out.Rounds != 2 {
		t.Fatalf("expected converged after 2 rounds, got %v after %d", out.State, out.Rounds)
	}
	want := strings.Replace(fixture, "old.size()", "Old.len()", 1)
	want = strings.Replace(want, "    fn size", "    pub fn size", 1)
	if diff := cmp.Diff(want, string(out.Fixed)); diff != "" {
		t.Fatalf("fixed source mismatch (-want +got):\n%s", diff)
	}
	if len(comp.sources) != 2 {
		t.Fatalf("expected 2 recompiles, got %d", len(comp.sources))
	}
}

func TestLoopMatchesSpansByTestID(t *testing.T) {
	const id = "ui/fix/main.rs"
	edit := func(file string) diag.Edit {
		sp := span(10, 20, 10, 30)
		sp.File = file
		return diag.Edit{Span: sp, Replacement: "Old.len()"}
	}

	comp := &scripted{rounds: [][]diag.Diagnostic{nil}}
	l := newLoop(comp, 3, nil)
	l.File = id
	initial := []diag.Diagnostic{suggesting("no method named `size` found", diag.MachineApplicable, edit(id))}
	out, err := l.Run(context.Background(), []byte(fixture), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != Converged || out.Rounds != 1 || !strings.Contains(string(out.Fixed), "Old.len()") {
		t.Fatalf("normalized spans not applied: %v after %d rounds", out.State, out.Rounds)
	}

	// спаны с путём scratch-копии не нормализованы и к ID не относятся
	comp = &scripted{}
	l = newLoop(comp, 3, nil)
	l.File = id
	initial = []diag.Diagnostic{suggesting("no method named `size` found", diag.MachineApplicable, edit(scratch))}
	out, err = l.Run(context.Background(), []byte(fixture), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Rounds != 0 || string(out.Fixed) != fixture || len(out.Skipped) != 1 {
		t.Fatalf("scratch-path edit applied: rounds=%d skipped=%+v", out.Rounds, out.Skipped)
	}
}

func TestLoopWithoutSuggestionsKeepsSource(t *testing.T) {
	initial := []diag.Diagnostic{testkit.Error("E0425", testkit.At(scratch, 10, 20, 23), "cannot find value `old`")}
	comp := &scripted{}

	out, err := newLoop(comp, 3, nil).Run(context.Background(), []byte(fixture), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.State != Converged || out.Rounds != 0 {
		t.Fatalf("expected converged after 0 rounds, got %v after %d", out.State, out.Rounds)
	}
	if string(out.Fixed) != fixture {
		t.Fatal("source changed without suggestions")
	}
	if len(comp.sources) != 0 {
		t.Fatal("compiler invoked without patches")
	}
}

func TestLoopExceeded(t *testing.T) {
	again := func(text string) []diag.Diagnostic {
		return []diag.Diagnostic{suggesting("still broken", diag.MachineApplicable, insert(1, 1, text))}
	}
	comp := &scripted{rounds: [][]diag.Diagnostic{again("b"), again("c"), again("d")}}
	var log []transition

	out, err := newLoop(comp, 2, &log).Run(context.Background(), []byte(fixture), again("a"))
	var ce *ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConvergenceError, got %v", err)
	}
	if ce.Kind != Exceeded || ce.Round != 2 || ce.Errors != 1 {
		t.Fatalf("unexpected error %+v", ce)
	}
	if !strings.Contains(err.Error(), "fix did not converge") {
		t.Fatalf("unexpected message %q", err)
	}
	if out.State != Exceeded || out.Rounds != 2 {
		t.Fatalf("expected exceeded after 2 rounds, got %v after %d", out.State, out.Rounds)
	}
	if !strings.HasPrefix(string(out.Fixed), "ba// run-rustfix") {
		t.Fatalf("unexpected partial fix %q", out.Fixed[:20])
	}
	if last := log[len(log)-1]; last.To != Exceeded {
		t.Fatalf("last transition %+v", last)
	}
}

func TestLoopStuck(t *testing.T) {
	initial := []diag.Diagnostic{
		suggesting("no method named `size` found", diag.MachineApplicable, replace(10, 20, 30, "Old.len()")),
	}
	remaining := []diag.Diagnostic{testkit.Error("E0599", testkit.At(scratch, 10, 24, 27), "no method named `len` found")}
	comp := &scripted{rounds: [][]diag.Diagnostic{remaining}}

	_, err := newLoop(comp, 4, nil).Run(context.Background(), []byte(fixture), initial)
	var ce *ConvergenceError
	if !errors.As(err, &ce) || ce.Kind != Stuck || ce.Round != 1 {
		t.Fatalf("expected stuck after round 1, got %v", err)
	}
}

func TestLoopAmbiguousRound(t *testing.T) {
	initial := []diag.Diagnostic{
		suggesting("first", diag.MachineApplicable, replace(10, 20, 30, "a")),
		suggesting("second", diag.MachineApplicable, replace(10, 25, 26, "b")),
	}
	out, err := newLoop(&scripted{}, 4, nil).Run(context.Background(), []byte(fixture), initial)
	var ce *ConvergenceError
	if !errors.As(err, &ce) || ce.Kind != Ambiguous || ce.Round != 1 {
		t.Fatalf("expected ambiguous in round 1, got %v", err)
	}
	if out.State != Failed {
		t.Fatalf("expected failed state, got %v", out.State)
	}
	if string(out.Fixed) != fixture {
		t.Fatal("ambiguous round must not change the source")
	}
}

func TestLoopMachineOnly(t *testing.T) {
	initial := []diag.Diagnostic{
		suggesting("maybe", diag.MaybeIncorrect, replace(10, 20, 30, "Old.len()")),
	}
	l := newLoop(&scripted{}, 4, nil)
	l.MachineOnly = true
	out, err := l.Run(context.Background(), []byte(fixture), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Rounds != 0 || string(out.Fixed) != fixture {
		t.Fatalf("maybe-incorrect suggestion applied: rounds=%d", out.Rounds)
	}
	if len(out.Skipped) != 1 {
		t.Fatalf("expected 1 skipped suggestion, got %v", out.Skipped)
	}
}

func TestLoopCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	initial := []diag.Diagnostic{
		suggesting("x", diag.MachineApplicable, replace(10, 20, 30, "Old.len()")),
	}
	_, err := newLoop(&scripted{}, 4, nil).Run(ctx, []byte(fixture), initial)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
