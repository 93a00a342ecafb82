package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"uitest/internal/coverage"
	"uitest/internal/diag"
	"uitest/internal/diagfmt"
	"uitest/internal/directive"
	"uitest/internal/fix"
	"uitest/internal/invoke"
	"uitest/internal/match"
	"uitest/internal/normalize"
	"uitest/internal/observ"
	"uitest/internal/report"
	"uitest/internal/snapshot"
	"uitest/internal/source"
	"uitest/internal/suite"
	"uitest/internal/trace"
)

// caseRun is the state of one case while it moves through the stages.
// It is owned by a single worker.
type caseRun struct {
	r      *Runner
	tc     *suite.TestCase
	dirs   *directive.Directives
	res    *report.Result
	timer  *observ.Timer
	tracer trace.Tracer

	scratch string // собственный каталог кейса внутри BuildDir
	req     invoke.Request
	norm    *normalize.Normalizer

	snap  diag.Snapshot
	diags []diag.Diagnostic // нормализованные
	exit  int
}

// Run executes one case. Failures never escape as errors: they are
// collected as reasons on the returned result.
func (r *Runner) Run(ctx context.Context, tc *suite.TestCase) report.Result {
	res := report.Result{ID: tc.ID}
	c := &caseRun{
		r:      r,
		tc:     tc,
		res:    &res,
		timer:  observ.NewTimer(),
		tracer: trace.FromContext(ctx),
	}
	started := time.Now()
	span := trace.Begin(c.tracer, trace.ScopeCase, tc.ID, "case")
	r.opts.Sink.OnEvent(Event{Case: tc.ID, Stage: StageCase, Status: StatusWorking})

	c.execute(ctx)

	res.Classify()
	res.Duration = time.Since(started)
	res.Timings = c.timer.Report()
	if r.opts.Totals != nil && len(res.Timings.Phases) > 0 {
		r.opts.Totals.Add(c.timer)
	}
	span.End(res.Status.String())

	status := StatusDone
	switch {
	case res.Status == report.Failed:
		status = StatusError
	case res.Status == report.Ignored || res.Cached:
		status = StatusSkipped
	}
	r.opts.Sink.OnEvent(Event{Case: tc.ID, Stage: StageCase, Status: status, Elapsed: res.Duration})
	return res
}

func (c *caseRun) execute(ctx context.Context) {
	tc := c.tc
	if tc.ParseErr != nil {
		c.res.Fail(tc.ID, tc.ParseErr)
		return
	}
	c.dirs = &tc.Parsed.Directives
	if why, ignored := c.dirs.Ignored(c.r.opts.Target); ignored {
		c.res.Status = report.Ignored
		c.res.Ignore = why
		return
	}

	var key Digest
	stamps := c.r.opts.Stamps
	if stamps != nil && !c.r.opts.Bless {
		key = StampKey(tc, c.r.opts.Fingerprint)
		fresh, err := stamps.Fresh(tc.ID, key)
		if err != nil {
			trace.Warn(c.tracer, tc.ID, "stamp", err.Error())
		}
		if fresh && !c.r.opts.ForceRerun {
			c.res.Cached = true
			return
		}
	}

	scratch, err := os.MkdirTemp(c.r.opts.BuildDir, scratchPattern(tc))
	if err != nil {
		c.res.Fail(tc.ID, fmt.Errorf("create scratch dir: %w", err))
		return
	}
	defer os.RemoveAll(scratch)
	c.scratch = scratch

	if !c.compile(ctx) {
		return
	}
	c.checkAnnotations()
	c.checkSnapshot()
	if c.dirs.RunRustfix {
		c.runFix(ctx)
	}
	if c.wantsCoverage() {
		c.checkCoverage(ctx)
	}

	if stamps != nil && !c.r.opts.Bless && len(c.res.Reasons) == 0 {
		if err := stamps.Put(tc.ID, key); err != nil {
			trace.Warn(c.tracer, tc.ID, "stamp", err.Error())
		}
	}
}

func scratchPattern(tc *suite.TestCase) string {
	return strings.ReplaceAll(strings.TrimSuffix(tc.ID, filepath.Ext(tc.ID)), "/", "-") + "-*"
}

// stage starts timing and tracing of one stage. The returned function ends
// it; a stage that added reasons is reported with StatusError.
func (c *caseRun) stage(st Stage) func() {
	idx := c.timer.Begin(string(st))
	span := trace.Begin(c.tracer, trace.ScopeStage, c.tc.ID, string(st))
	before := len(c.res.Reasons)
	c.r.opts.Sink.OnEvent(Event{Case: c.tc.ID, Stage: st, Status: StatusWorking})
	return func() {
		added := len(c.res.Reasons) - before
		note := "ok"
		status := StatusDone
		var err error
		if added > 0 {
			note = fmt.Sprintf("%d failure(s)", added)
			status = StatusError
			err = errors.New(c.res.Reasons[before].String())
		}
		c.timer.End(idx, note)
		elapsed := span.End(note)
		c.r.opts.Sink.OnEvent(Event{Case: c.tc.ID, Stage: st, Status: status, Err: err, Elapsed: elapsed})
	}
}

func (c *caseRun) timeout() time.Duration {
	if c.dirs.Timeout > 0 {
		return c.dirs.Timeout
	}
	if c.r.opts.Timeout > 0 {
		return c.r.opts.Timeout
	}
	return invoke.DefaultTimeout
}

// compile runs the first invocation and normalizes its diagnostics. It
// reports whether later stages have anything to work on.
func (c *caseRun) compile(ctx context.Context) bool {
	defer c.stage(StageCompile)()

	tc := c.tc
	c.req = invoke.Request{
		Source:  tc.Path,
		Flags:   c.dirs.CompileFlags,
		Edition: c.dirs.Edition,
		Aux:     tc.AuxPaths(),
		Env:     c.dirs.Env,
		Dir:     tc.Dir(),
		Timeout: c.timeout(),
	}
	trace.Point(c.tracer, trace.ScopeDetail, tc.ID, "invoke", strings.Join(c.req.Flags, " "))

	out, err := c.r.opts.Compiler.Compile(ctx, c.req)
	if err != nil {
		c.res.Fail(tc.ID, err)
		return false
	}
	c.exit = out.ExitCode
	c.snap = out.Snapshot()
	c.norm = normalize.New(normalize.Paths{
		TestDir:  tc.Dir(),
		SrcRoot:  tc.Root,
		BuildDir: c.scratch,
	}, normalize.Options{Tools: c.r.opts.Tools}, c.dirs.NormalizeStderr...)
	c.diags = c.norm.Diagnostics(c.snap.Diagnostics)
	return true
}

// checkAnnotations verifies the mode, error patterns, inline annotations
// and the compiler's own summary line.
func (c *caseRun) checkAnnotations() {
	defer c.stage(StageAnnotations)()

	tc, d := c.tc, c.dirs
	sum := c.snap.Summary()

	switch {
	case d.Mode.ExpectsSuccess() && (sum.Errors > 0 || c.exit != 0):
		c.fail(report.KindMode, 0, "no errors, exit status 0",
			fmt.Sprintf("%s, exit status %d", emittedErrors(sum.Errors), c.exit),
			d.Mode.String()+" test failed to compile")
	case d.Mode.ExpectsFailure() && (sum.Errors == 0 || c.exit == 0):
		c.fail(report.KindMode, 0, "at least one error, exit status 1",
			fmt.Sprintf("%s, exit status %d", emittedErrors(sum.Errors), c.exit),
			d.Mode.String()+" test compiled successfully")
	}

	if len(d.ErrorPatterns) > 0 {
		haystack := c.messages()
		for _, p := range d.ErrorPatterns {
			if !strings.Contains(haystack, p) {
				c.fail(report.KindErrorPattern, 0, p, "", "error pattern not found in compiler output")
			}
		}
	}

	anns := tc.Parsed.Annotations
	allowUnannotated := d.DontRequireAnnotations || (len(anns) == 0 && len(d.ErrorPatterns) > 0)
	result := match.Match(anns, c.diags, match.Options{File: tc.ID, AllowUnannotated: allowUnannotated})
	first := len(c.res.Reasons)
	for i := range result.Mismatches {
		c.res.Fail(tc.ID, &result.Mismatches[i])
	}
	if len(result.Mismatches) > 0 && len(c.diags) > 0 {
		// полный список рядом с первым расхождением, для -v
		c.res.Reasons[first].Detail = "emitted:\n" + diag.FormatShortDiagnostics(c.diags, true)
		c.res.Emitted = c.diags
	}
	trace.Point(c.tracer, trace.ScopeDetail, tc.ID, "match",
		fmt.Sprintf("%d matched, %d mismatched", len(result.Matched), len(result.Mismatches)))

	if rep := c.snap.Reported; rep != nil && *rep != sum {
		c.fail(report.KindSummary, 0, sum.Line(), rep.Line(), "compiler summary disagrees with emitted diagnostics")
	}
}

func emittedErrors(n int) string {
	if n == 1 {
		return "1 error"
	}
	return fmt.Sprintf("%d errors", n)
}

// messages joins every message and label of the normalized stream, children
// included, for error-pattern lookups.
func (c *caseRun) messages() string {
	var b strings.Builder
	var walk func(d *diag.Diagnostic)
	walk = func(d *diag.Diagnostic) {
		b.WriteString(d.Message)
		b.WriteByte('\n')
		for _, sp := range d.Spans {
			if sp.Label != "" {
				b.WriteString(sp.Label)
				b.WriteByte('\n')
			}
		}
		for i := range d.Children {
			walk(&d.Children[i])
		}
	}
	for i := range c.diags {
		walk(&c.diags[i])
	}
	return b.String()
}

func (c *caseRun) fail(kind report.ReasonKind, line int, expected, actual, msg string) {
	c.res.Reasons = append(c.res.Reasons, report.Reason{
		Kind:     kind,
		File:     c.tc.ID,
		Line:     line,
		Expected: expected,
		Actual:   actual,
		Message:  msg,
	})
}

// stderrText renders the normalized snapshot in fixture form.
func (c *caseRun) stderrText() string {
	fs := source.NewFileSet()
	fs.AddVirtual(c.tc.ID, c.tc.Source)
	opts := diagfmt.FixtureOpts()
	snap := diag.Snapshot{Diagnostics: c.diags, Reported: c.snap.Reported}
	text := snap.Text(func(d *diag.Diagnostic) string {
		return diagfmt.Render(d, fs, opts)
	})
	return c.norm.Text(text)
}

func (c *caseRun) checkSnapshot() {
	defer c.stage(StageSnapshot)()

	tc := c.tc
	actual := c.stderrText()
	fixture := suite.FixturePath(tc.ID, ".stderr")
	for _, w := range normalize.Residue(actual) {
		c.res.Warn(fixture, &w)
		trace.Warn(c.tracer, tc.ID, "normalize", w.Error())
	}
	if c.dirs.DontCheckStderr {
		return
	}
	c.compareOrBless(fixture, suite.FixturePath(tc.Path, ".stderr"), tc.Stderr, actual)
}

// compareOrBless checks actual against a fixture, or rewrites the fixture in
// bless mode. An empty actual means no fixture should exist.
func (c *caseRun) compareOrBless(name, path string, fx suite.Fixture, actual string) {
	if c.r.opts.Bless {
		changed, err := snapshot.Bless(path, actual)
		if err != nil {
			c.res.Fail(name, err)
			return
		}
		if changed {
			c.res.Blessed = append(c.res.Blessed, name)
			trace.Point(c.tracer, trace.ScopeDetail, c.tc.ID, "bless", name)
		}
		return
	}
	if mm := snapshot.Compare(name, fx.Text, actual); mm != nil {
		c.res.Fail(name, mm)
	}
}

// runFix applies suggestions to a scratch copy of the source until it
// compiles cleanly, then checks the result against the .fixed fixture.
func (c *caseRun) runFix(ctx context.Context) {
	defer c.stage(StageFix)()

	tc := c.tc
	scratchFile := filepath.Join(c.scratch, "fix", filepath.FromSlash(tc.ID))
	if err := os.MkdirAll(filepath.Dir(scratchFile), 0o755); err != nil {
		c.res.Fail(tc.ID, err)
		return
	}
	// пути scratch-копии нормализуются в тот же ID, что и у оригинала
	scratchNorm := normalize.New(normalize.Paths{SrcRoot: filepath.Join(c.scratch, "fix")}, normalize.Options{Tools: c.r.opts.Tools})

	loop := &fix.Loop{
		File:        tc.ID,
		MaxRounds:   c.r.opts.MaxFixRounds,
		MachineOnly: c.dirs.MachineApplicableOnly,
		Compile: func(ctx context.Context, src []byte) ([]diag.Diagnostic, error) {
			if err := os.WriteFile(scratchFile, src, 0o644); err != nil {
				return nil, err
			}
			req := c.req
			req.Source = scratchFile
			out, err := c.r.opts.Compiler.Compile(ctx, req)
			if err != nil {
				return nil, err
			}
			return scratchNorm.Diagnostics(out.Snapshot().Diagnostics), nil
		},
		OnTransition: func(from, to fix.State, round int) {
			trace.Point(c.tracer, trace.ScopeDetail, tc.ID, "fix", fmt.Sprintf("%s -> %s (round %d)", from, to, round))
		},
	}
	outcome, err := loop.Run(ctx, tc.Source, c.diags)
	if outcome != nil {
		for _, s := range outcome.Skipped {
			trace.Point(c.tracer, trace.ScopeDetail, tc.ID, "fix-skip", s.Title+": "+s.Reason)
		}
	}
	if err != nil {
		c.res.Fail(tc.ID, err)
		return
	}

	// без единого применённого исправления .fixed не нужен
	actual := ""
	if outcome.Rounds > 0 {
		actual = c.norm.Source(string(outcome.Fixed))
	}
	fx := tc.Fixed
	fx.Text = c.norm.Source(fx.Text)
	c.compareOrBless(suite.FixturePath(tc.ID, ".fixed"), suite.FixturePath(tc.Path, ".fixed"), fx, actual)
}

func (c *caseRun) wantsCoverage() bool {
	return c.tc.Coverage.Exists || c.r.opts.Coverage
}

func (c *caseRun) checkCoverage(ctx context.Context) {
	defer c.stage(StageCoverage)()

	tc := c.tc
	name := suite.FixturePath(tc.ID, ".coverage")
	if errs := c.snap.Summary().Errors; errs > 0 {
		c.fail(report.KindCoverage, 0, "program compiles", emittedErrors(errs), "cannot collect coverage")
		return
	}
	counts, err := c.r.opts.Compiler.Coverage(ctx, c.req)
	if err != nil {
		c.res.Fail(name, err)
		return
	}
	listing := coverage.Build(c.norm.Source(string(tc.Source)), counts)
	actual := listing.Render(true)

	if c.r.opts.Bless || !tc.Coverage.Exists {
		c.compareOrBless(name, suite.FixturePath(tc.Path, ".coverage"), tc.Coverage, actual)
		return
	}
	expected, err := coverage.Parse(tc.Coverage.Text)
	if err != nil {
		c.res.Fail(name, err)
		return
	}
	mismatches := coverage.Compare(expected, listing)
	for i := range mismatches {
		c.res.Fail(name, &mismatches[i])
	}
}
