package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"uitest/internal/coverage"
	"uitest/internal/diag"
	"uitest/internal/invoke"
	"uitest/internal/observ"
	"uitest/internal/report"
	"uitest/internal/suite"
	"uitest/internal/testkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCompiler diagnoses marker text found in the source it is given:
//
//	"five"   mismatched types
//	missing  unresolved name
//	BAD2     placeholder, machine fix to BAD
//	BAD      placeholder, machine fix to GOOD
type fakeCompiler struct {
	mu       sync.Mutex
	sources  []string
	timeouts []time.Duration
	counts   map[int]uint64
	err      error
}

func (f *fakeCompiler) Compile(_ context.Context, req invoke.Request) (*invoke.Result, error) {
	f.mu.Lock()
	f.sources = append(f.sources, req.Source)
	f.timeouts = append(f.timeouts, req.Timeout)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	src, err := os.ReadFile(req.Source)
	if err != nil {
		return nil, err
	}

	var stream []diag.Diagnostic
	for i, line := range strings.Split(string(src), "\n") {
		n := uint32(i + 1)
		code := strings.Index(line, "//")
		if code < 0 {
			code = len(line)
		}
		body := line[:code]
		switch {
		case strings.Contains(body, `"five"`):
			stream = append(stream, located(req.Source, n, body, `"five"`, "E0308", "mismatched types"))
		case strings.Contains(body, "missing"):
			stream = append(stream, located(req.Source, n, body, "missing", "E0425", "cannot find value `missing` in this scope"))
		case strings.Contains(body, "BAD2"):
			d := located(req.Source, n, body, "BAD2", "E0001", "placeholder BAD2")
			stream = append(stream, testkit.With(d, testkit.Suggestion("replace with BAD", diag.MachineApplicable,
				diag.Edit{Span: d.Spans[0], Replacement: "BAD"})))
		case strings.Contains(body, "BAD"):
			d := located(req.Source, n, body, "BAD", "E0001", "placeholder BAD")
			stream = append(stream, testkit.With(d, testkit.Suggestion("replace with GOOD", diag.MachineApplicable,
				diag.Edit{Span: d.Spans[0], Replacement: "GOOD"})))
		}
	}

	sum := diag.NewSnapshot(stream).Summary()
	exit := 0
	if sum.Errors > 0 {
		exit = 1
	}
	if msg := sum.Message(); msg != "" {
		stream = append(stream, testkit.Unlocated(sum.Severity(), msg))
	}
	return &invoke.Result{Stream: stream, ExitCode: exit}, nil
}

func (f *fakeCompiler) Coverage(context.Context, invoke.Request) (map[int]uint64, error) {
	if f.counts == nil {
		return nil, errors.New("no coverage configured")
	}
	return f.counts, nil
}

func (f *fakeCompiler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

func located(file string, line uint32, text, marker string, code diag.Code, msg string) diag.Diagnostic {
	col := uint32(strings.Index(text, marker)) + 1
	end := col + uint32(len(marker))
	rendered := fmt.Sprintf("error[%s]: %s\n --> %s:%d:%d\n", code, msg, file, line, col)
	return testkit.Error(code, testkit.At(file, line, col, end), msg, testkit.Rendered(rendered))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func load(t *testing.T, root, id string) *suite.TestCase {
	t.Helper()
	tc, err := suite.Load(root, id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return tc
}

func newRunner(t *testing.T, fc *fakeCompiler, mutate func(*Options)) *Runner {
	t.Helper()
	opts := Options{Compiler: fc, BuildDir: t.TempDir(), Jobs: 2}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func reasonKinds(res report.Result) []report.ReasonKind {
	var kinds []report.ReasonKind
	for _, r := range res.Reasons {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

const twoErrors = `// two errors
fn main() {
    // mismatched

    let x: i32 = "five"; //~ ERROR mismatched types
    let _ = x;

    // unresolved
    let y = missing; //~ ERROR cannot find value
    let _ = y;
}
`

const twoErrorsStderr = `error[E0308]: mismatched types
 --> $DIR/two.rs:5:18

error[E0425]: cannot find value ` + "`missing`" + ` in this scope
 --> $DIR/two.rs:9:13

error: aborting due to 2 previous errors
`

func TestRunTwoErrorsPass(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/two.rs":     twoErrors,
		"ui/two.stderr": twoErrorsStderr,
	})
	fc := &fakeCompiler{}
	res := newRunner(t, fc, nil).Run(context.Background(), load(t, root, "ui/two.rs"))
	if res.Status != report.Passed {
		t.Fatalf("expected pass, got %s: %v", res.Status, res.Reasons)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if fc.calls() != 1 {
		t.Fatalf("expected one invocation, got %d", fc.calls())
	}
	var stages []string
	for _, p := range res.Timings.Phases {
		stages = append(stages, p.Name)
	}
	if diff := cmp.Diff([]string{"compile", "annotations", "snapshot"}, stages); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStaleStderrFails(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/two.rs":     twoErrors,
		"ui/two.stderr": strings.Replace(twoErrorsStderr, "5:18", "5:17", 1),
	})
	res := newRunner(t, &fakeCompiler{}, nil).Run(context.Background(), load(t, root, "ui/two.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindSnapshot}, reasonKinds(res)); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	r := res.Reasons[0]
	if r.File != "ui/two.stderr" || r.Line != 2 || !strings.Contains(r.Actual, "5:18") {
		t.Fatalf("unexpected reason %+v", r)
	}
}

func TestAnnotationMismatchKeepsEmitted(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/wrong.rs": "fn main() {\n    let x = missing; //~ ERROR mismatched types\n}\n",
	})
	res := newRunner(t, &fakeCompiler{}, nil).Run(context.Background(), load(t, root, "ui/wrong.rs"))
	if res.Status != report.Failed {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	if len(res.Emitted) != 1 || res.Emitted[0].Code != "E0425" {
		t.Fatalf("emitted = %+v", res.Emitted)
	}
	for _, r := range res.Reasons {
		if r.Kind == report.KindAnnotation {
			if !strings.HasPrefix(r.Detail, "emitted:\n") {
				t.Fatalf("first annotation reason lacks the short listing: %q", r.Detail)
			}
			return
		}
	}
	t.Fatalf("no annotation reason in %+v", res.Reasons)
}

func TestRunMissingWarning(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/warn.rs": "fn main() {\n    let used = 1;\n    let unused = 2; //~ WARN unused variable\n    let _ = used;\n}\n",
	})
	res := newRunner(t, &fakeCompiler{}, nil).Run(context.Background(), load(t, root, "ui/warn.rs"))
	if res.Status != report.Failed {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	if diff := cmp.Diff([]report.ReasonKind{report.KindAnnotation}, reasonKinds(res)); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if res.Reasons[0].Line != 3 || !strings.Contains(res.Reasons[0].Expected, "unused variable") {
		t.Fatalf("unexpected reason %+v", res.Reasons[0])
	}
}

func TestRunModeAndErrorPattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/pass.rs": "//@ check-pass\nfn main() {\n    let y = missing; //~ ERROR cannot find\n}\n",
		"ui/pattern.rs": "//@ error-pattern: cannot find value\n//@ error-pattern: no such text\n" +
			"fn main() {\n    let y = missing;\n}\n",
	})
	r := newRunner(t, &fakeCompiler{}, func(o *Options) { o.Bless = true })

	res := r.Run(context.Background(), load(t, root, "ui/pass.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindMode}, reasonKinds(res)); diff != "" {
		t.Fatalf("check-pass reasons mismatch (-want +got):\n%s", diff)
	}

	res = r.Run(context.Background(), load(t, root, "ui/pattern.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindErrorPattern}, reasonKinds(res)); diff != "" {
		t.Fatalf("error-pattern reasons mismatch (-want +got):\n%s", diff)
	}
	if res.Reasons[0].Expected != "no such text" {
		t.Fatalf("unexpected reason %+v", res.Reasons[0])
	}
}

func TestBlessRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"ui/two.rs": twoErrors})
	fc := &fakeCompiler{}

	res := newRunner(t, fc, func(o *Options) { o.Bless = true }).Run(context.Background(), load(t, root, "ui/two.rs"))
	if res.Status != report.Blessed {
		t.Fatalf("expected blessed, got %s: %v", res.Status, res.Reasons)
	}
	data, err := os.ReadFile(filepath.Join(root, "ui", "two.stderr"))
	if err != nil {
		t.Fatalf("read blessed fixture: %v", err)
	}
	if diff := cmp.Diff(twoErrorsStderr, string(data)); diff != "" {
		t.Fatalf("blessed fixture mismatch (-want +got):\n%s", diff)
	}

	res = newRunner(t, fc, nil).Run(context.Background(), load(t, root, "ui/two.rs"))
	if res.Status != report.Passed {
		t.Fatalf("expected pass after bless, got %s: %v", res.Status, res.Reasons)
	}
}

func TestRustfixConverges(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		compiles int
	}{
		{"one round", "    let value = BAD; //~ ERROR placeholder", 2},
		{"two rounds", "    let value = BAD2; //~ ERROR placeholder", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			src := "//@ run-rustfix\nfn main() {\n" + tc.line + "\n    let _ = value;\n}\n"
			writeFiles(t, root, map[string]string{"ui/fix.rs": src})
			fc := &fakeCompiler{}

			res := newRunner(t, fc, func(o *Options) { o.Bless = true }).Run(context.Background(), load(t, root, "ui/fix.rs"))
			if res.Status != report.Blessed {
				t.Fatalf("expected blessed, got %s: %v", res.Status, res.Reasons)
			}
			if fc.calls() != tc.compiles {
				t.Fatalf("expected %d compilations, got %d", tc.compiles, fc.calls())
			}
			for _, p := range fc.sources[1:] {
				if p == filepath.Join(root, "ui", "fix.rs") {
					t.Fatalf("fix recompiled the original source %s", p)
				}
			}
			fixed, err := os.ReadFile(filepath.Join(root, "ui", "fix.fixed"))
			if err != nil {
				t.Fatalf("read .fixed: %v", err)
			}
			want := "//@ run-rustfix\nfn main() {\n    let value = GOOD; //~ ERROR placeholder\n    let _ = value;\n}\n"
			if diff := cmp.Diff(want, string(fixed)); diff != "" {
				t.Fatalf(".fixed mismatch (-want +got):\n%s", diff)
			}
			original, _ := os.ReadFile(filepath.Join(root, "ui", "fix.rs"))
			if string(original) != src {
				t.Fatal("original source was modified")
			}

			res = newRunner(t, fc, nil).Run(context.Background(), load(t, root, "ui/fix.rs"))
			if res.Status != report.Passed {
				t.Fatalf("expected pass after bless, got %s: %v", res.Status, res.Reasons)
			}
		})
	}
}

func TestRustfixFixedMismatch(t *testing.T) {
	root := t.TempDir()
	src := "//@ run-rustfix\nfn main() {\n    let value = BAD; //~ ERROR placeholder\n}\n"
	writeFiles(t, root, map[string]string{
		"ui/fix.rs":    src,
		"ui/fix.fixed": strings.Replace(src, "BAD", "FINE", 1),
	})
	r := newRunner(t, &fakeCompiler{}, func(o *Options) { o.Bless = true })
	if res := r.Run(context.Background(), load(t, root, "ui/fix.rs")); res.Status != report.Blessed {
		t.Fatalf("expected blessed, got %s: %v", res.Status, res.Reasons)
	}
	// повторная запись эталона возвращает старый .fixed
	writeFiles(t, root, map[string]string{"ui/fix.fixed": strings.Replace(src, "BAD", "FINE", 1)})

	res := newRunner(t, &fakeCompiler{}, nil).Run(context.Background(), load(t, root, "ui/fix.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindSnapshot}, reasonKinds(res)); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if res.Reasons[0].File != "ui/fix.fixed" || res.Reasons[0].Line != 3 {
		t.Fatalf("unexpected reason %+v", res.Reasons[0])
	}
}

func TestCoverageLineEightMismatch(t *testing.T) {
	src := strings.Join([]string{
		"fn main() {",
		"    let n = 3;",
		"    if n > 5 {",
		"        println!(\"big\");",
		"    }",
		"    // comment",
		"    let m = n * 2;",
		"    report(m);",
		"    let _ = m;",
		"}",
	}, "\n") + "\n"
	expected := map[int]uint64{1: 1, 2: 1, 3: 1, 4: 0, 7: 1, 8: 1, 10: 1}
	actual := map[int]uint64{1: 1, 2: 1, 3: 1, 4: 0, 7: 1, 8: 0, 10: 1}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/cov.rs":       src,
		"ui/cov.coverage": coverage.Build(src, expected).Render(true),
	})
	res := newRunner(t, &fakeCompiler{counts: actual}, nil).Run(context.Background(), load(t, root, "ui/cov.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindCoverage}, reasonKinds(res)); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	r := res.Reasons[0]
	if r.File != "ui/cov.coverage" || r.Line != 8 {
		t.Fatalf("unexpected reason %+v", r)
	}
}

func TestTimeoutAndCrash(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/slow.rs": "//@ timeout: 50ms\nfn main() {}\n",
	})
	fc := &fakeCompiler{err: &invoke.InvocationError{Path: "rustc", TimedOut: true, Timeout: 50 * time.Millisecond, ExitCode: -1}}
	res := newRunner(t, fc, func(o *Options) { o.Timeout = time.Minute }).Run(context.Background(), load(t, root, "ui/slow.rs"))
	if diff := cmp.Diff([]report.ReasonKind{report.KindTimeout}, reasonKinds(res)); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if fc.timeouts[0] != 50*time.Millisecond {
		t.Fatalf("directive timeout not passed, got %s", fc.timeouts[0])
	}

	crash := &fakeCompiler{err: &invoke.InvocationError{Path: "rustc", ExitCode: 101}}
	rep := newRunner(t, crash, func(o *Options) { o.Bless = true }).RunAll(context.Background(), []*suite.TestCase{load(t, root, "ui/slow.rs")})
	if rep.ExitCode() == 0 {
		t.Fatal("crash in bless mode must fail the run")
	}
}

func TestRunAllSortsAndCounts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ui/two.rs":     twoErrors,
		"ui/two.stderr": twoErrorsStderr,
		"ui/a/ign.rs":   "//@ ignore-test\nfn main() {}\n",
		"ui/b/bad.rs":   "//@ no-such-directive\nfn main() {}\n",
		"ui/c/warn.rs":  "fn main() {\n    let unused = 2; //~ WARN unused\n}\n",
		"ui/d/clean.rs": "fn main() {}\n",
	})
	ids, err := suite.Discover(root, suite.Filter{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	reg, err := suite.LoadAll(context.Background(), root, ids, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var (
		mu     sync.Mutex
		events = map[Status]int{}
	)
	sink := SinkFunc(func(ev Event) {
		if ev.Stage != StageCase || ev.Case == "" {
			return
		}
		mu.Lock()
		events[ev.Status]++
		mu.Unlock()
	})
	fc := &fakeCompiler{}
	totals := &observ.Totals{}
	rep := newRunner(t, fc, func(o *Options) { o.Jobs = 3; o.Sink = sink; o.Totals = totals }).
		RunAll(context.Background(), reg.All())

	var got []string
	for _, r := range rep.Results {
		got = append(got, r.ID+" "+r.Status.String())
	}
	want := []string{
		"ui/a/ign.rs ignored",
		"ui/b/bad.rs failed",
		"ui/c/warn.rs failed",
		"ui/d/clean.rs passed",
		"ui/two.rs passed",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if rep.Summary.String() != "2 passed; 2 failed; 0 blessed; 1 ignored" {
		t.Fatalf("unexpected summary %q", rep.Summary)
	}
	if rep.Canceled || rep.ExitCode() != 1 {
		t.Fatalf("unexpected exit state canceled=%v code=%d", rep.Canceled, rep.ExitCode())
	}
	if kinds := reasonKinds(rep.Results[1]); len(kinds) != 1 || kinds[0] != report.KindParse {
		t.Fatalf("parse error not reported: %v", kinds)
	}
	if fc.calls() != 3 {
		t.Fatalf("expected 3 invocations, got %d", fc.calls())
	}
	mu.Lock()
	defer mu.Unlock()
	if events[StatusQueued] != 5 || events[StatusWorking] != 5 {
		t.Fatalf("unexpected case events %v", events)
	}
	if !strings.Contains(totals.Summary(), "timings (3 cases)") {
		t.Fatalf("unexpected totals:\n%s", totals.Summary())
	}
}

func TestRunAllCanceled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"ui/two.rs": twoErrors, "ui/two.stderr": twoErrorsStderr})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := &fakeCompiler{}
	rep := newRunner(t, fc, nil).RunAll(ctx, []*suite.TestCase{load(t, root, "ui/two.rs")})
	if !rep.Canceled || len(rep.Results) != 0 {
		t.Fatalf("expected an empty aborted report, got %+v", rep)
	}
	if rep.ExitCode() == 0 {
		t.Fatal("aborted run must not exit 0")
	}
	entries, err := os.ReadDir(filepath.Join(root, "ui"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("aborted run touched the test tree: %v", entries)
	}
}

func TestStampsSkipUpToDate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"ui/two.rs": twoErrors, "ui/two.stderr": twoErrorsStderr})
	build := t.TempDir()
	stamps, err := OpenStampCache(build)
	if err != nil {
		t.Fatalf("open stamps: %v", err)
	}
	fc := &fakeCompiler{}
	mk := func(force bool) *Runner {
		return newRunner(t, fc, func(o *Options) {
			o.BuildDir = build
			o.Stamps = stamps
			o.Fingerprint = "fake-1"
			o.ForceRerun = force
		})
	}

	if res := mk(false).Run(context.Background(), load(t, root, "ui/two.rs")); res.Status != report.Passed || res.Cached {
		t.Fatalf("first run: %s cached=%v", res.Status, res.Cached)
	}
	if res := mk(false).Run(context.Background(), load(t, root, "ui/two.rs")); !res.Cached {
		t.Fatal("second run should be skipped by its stamp")
	}
	if fc.calls() != 1 {
		t.Fatalf("expected 1 invocation, got %d", fc.calls())
	}
	if res := mk(true).Run(context.Background(), load(t, root, "ui/two.rs")); res.Cached {
		t.Fatal("force rerun must ignore stamps")
	}

	// изменённый эталон делает штамп устаревшим
	writeFiles(t, root, map[string]string{"ui/two.stderr": twoErrorsStderr + "\n"})
	if res := mk(false).Run(context.Background(), load(t, root, "ui/two.rs")); res.Cached || res.Status != report.Failed {
		t.Fatalf("stale stamp used: %s cached=%v", res.Status, res.Cached)
	}
}
