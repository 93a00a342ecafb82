// Package runner drives every test case through compile, match, snapshot,
// fix and coverage stages on a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"uitest/internal/directive"
	"uitest/internal/invoke"
	"uitest/internal/observ"
	"uitest/internal/report"
	"uitest/internal/suite"
	"uitest/internal/trace"
)

// Options configures a run.
type Options struct {
	Compiler invoke.Compiler
	// Fingerprint identifies the compiler build for stamps, see Fingerprint.
	Fingerprint string
	// BuildDir holds per-case scratch directories and stamps.
	BuildDir string
	Bless    bool
	Jobs     int
	// Timeout bounds each compiler invocation unless the case sets its own.
	Timeout      time.Duration
	MaxFixRounds int
	// Coverage checks every case against a .coverage listing, not only the
	// cases that already have one.
	Coverage bool
	// Tools overrides the tool names in the $VERSION normalization rule.
	Tools []string
	// Stamps enables skipping up-to-date cases; nil disables it.
	Stamps     *StampCache
	ForceRerun bool
	Sink       ProgressSink
	Totals     *observ.Totals
	// Target decides ignore-*/only-* directives; the host when GOOS is empty.
	Target directive.Target
}

// Runner executes test cases. It holds no per-case state.
type Runner struct {
	opts Options
}

// New validates opts and fills in defaults.
func New(opts Options) (*Runner, error) {
	if opts.Compiler == nil {
		return nil, errors.New("runner: no compiler configured")
	}
	if opts.BuildDir == "" {
		return nil, errors.New("runner: no build directory configured")
	}
	if err := os.MkdirAll(opts.BuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build dir: %w", err)
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Target.GOOS == "" {
		opts.Target = directive.HostTarget()
	}
	return &Runner{opts: opts}, nil
}

// WithSink returns a runner that reports progress to sink.
func (r *Runner) WithSink(sink ProgressSink) *Runner {
	opts := r.opts
	if sink == nil {
		sink = nopSink{}
	}
	opts.Sink = sink
	return &Runner{opts: opts}
}

// RunAll runs cases on the worker pool and aggregates the results. When ctx
// is canceled, queued cases are not started, in-flight cases are discarded
// (their processes are killed with the context), and the report keeps what
// had already finished with Canceled set.
func (r *Runner) RunAll(ctx context.Context, cases []*suite.TestCase) *report.Report {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRun, "", r.mode())
	started := time.Now()

	for _, tc := range cases {
		r.opts.Sink.OnEvent(Event{Case: tc.ID, Stage: StageCase, Status: StatusQueued})
	}

	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]report.Result, len(cases))
	finished := make([]bool, len(cases))

	if len(cases) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(r.opts.Jobs, len(cases)))
		for i, tc := range cases {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				res := r.Run(gctx, tc)
				if gctx.Err() != nil {
					// прерван посреди работы: результат недостоверен
					return nil
				}
				results[i] = res
				finished[i] = true
				return nil
			})
		}
		_ = g.Wait()
	}

	kept := make([]report.Result, 0, len(results))
	for i := range results {
		if finished[i] {
			kept = append(kept, results[i])
		}
	}
	rep := report.Aggregate(kept, r.opts.Bless)
	rep.Duration = time.Since(started)
	rep.Canceled = ctx.Err() != nil

	span.WithExtra("cases", fmt.Sprint(len(cases))).End(rep.Summary.String())
	status := StatusDone
	if rep.ExitCode() != 0 {
		status = StatusError
	}
	r.opts.Sink.OnEvent(Event{Stage: StageCase, Status: status, Elapsed: rep.Duration})
	return rep
}

func (r *Runner) mode() string {
	if r.opts.Bless {
		return "bless"
	}
	return "run"
}
