package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"uitest/internal/config"
	"uitest/internal/invoke"
	"uitest/internal/observ"
	"uitest/internal/report"
	"uitest/internal/runner"
	"uitest/internal/suite"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Compile test cases and check them against annotations and fixtures",
		Long: `Run compiles every selected test case and compares the diagnostics with
the //~ annotations and the .stderr, .fixed and .coverage fixtures next to it.
Paths select cases by file, directory or glob relative to the test root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, args, false)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func newBlessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bless [paths...]",
		Short: "Regenerate fixtures from the current compiler output",
		Long: `Bless runs the selected cases and rewrites their .stderr, .fixed and
.coverage fixtures from what the compiler produced. Fixtures for empty output
are removed. Only compiler crashes make bless exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, args, true)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func runSuite(cmd *cobra.Command, args []string, bless bool) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return usageError(err)
	}
	bless = bless || cfg.Run.Bless

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return usageError(err)
	}
	defer cleanup()

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return usageError(err)
	}
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := loadSuite(ctx, cfg, args)
	if err != nil {
		return usageError(err)
	}

	opts, err := runnerOptions(cmd, cfg, bless)
	if err != nil {
		return usageError(err)
	}
	r, err := runner.New(opts)
	if err != nil {
		return usageError(err)
	}

	cases := reg.All()
	uiValue, err := readUIMode(cfg.Run.UI)
	if err != nil {
		return usageErrorf("--ui: %w", err)
	}
	colorValue, err := readUIMode(cfg.Run.Color)
	if err != nil {
		return usageErrorf("--color: %w", err)
	}

	var rep *report.Report
	if shouldUseTUI(uiValue) && len(cases) > 0 {
		rep, err = runWithUI(ctx, r, title(bless), cases)
		if err != nil {
			return &ExitError{Code: exitFailures, Err: err}
		}
	} else {
		rep = r.RunAll(ctx, cases)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()
	if err := report.Print(out, rep, report.PrintOptions{Color: shouldColor(colorValue), Verbose: verbose}); err != nil {
		return &ExitError{Code: exitFailures, Err: err}
	}
	if cfg.Report.Timings && opts.Totals != nil {
		fmt.Fprint(out, opts.Totals.Summary())
	}
	if err := writeReports(cfg, rep); err != nil {
		return &ExitError{Code: exitFailures, Err: err}
	}
	if rep.Canceled {
		return &ExitError{Code: exitFailures, Err: errors.New("interrupted")}
	}
	if code := rep.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func title(bless bool) string {
	if bless {
		return "blessing"
	}
	return "testing"
}

// loadSuite discovers the test root, narrows it to args and reads every
// selected case.
func loadSuite(ctx context.Context, cfg *config.Config, args []string) (*suite.Registry, error) {
	root := cfg.TestRoot()
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("test root %s is not a directory", root)
	}
	ids, err := suite.Discover(root, cfg.Filter())
	if err != nil {
		return nil, fmt.Errorf("discover tests: %w", err)
	}
	ids, err = suite.Select(root, ids, args)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 && len(ids) == 0 {
		return nil, fmt.Errorf("no test cases match %v", args)
	}
	return suite.LoadAll(ctx, root, ids, cfg.Jobs())
}

func runnerOptions(cmd *cobra.Command, cfg *config.Config, bless bool) (runner.Options, error) {
	compiler := &invoke.ExecCompiler{
		Path:        cfg.CompilerPath(),
		BaseFlags:   cfg.Compiler.Flags,
		CoverageCmd: cfg.Compiler.Coverage,
	}
	forceRerun, _ := cmd.Flags().GetBool("force-rerun")
	opts := runner.Options{
		Compiler:     compiler,
		BuildDir:     cfg.BuildDir(),
		Bless:        bless,
		Jobs:         cfg.Jobs(),
		Timeout:      cfg.Compiler.Timeout.Duration,
		MaxFixRounds: cfg.Run.MaxFixRounds,
		Coverage:     cfg.CoverageMode(),
		Tools:        cfg.Compiler.Tools,
		ForceRerun:   forceRerun,
	}
	if cfg.Report.Timings {
		opts.Totals = &observ.Totals{}
	}
	if cfg.Run.Stamps && !bless {
		stamps, err := runner.OpenStampCache(cfg.BuildDir())
		if err != nil {
			return opts, err
		}
		opts.Stamps = stamps
		opts.Fingerprint = compilerFingerprint(cfg)
	}
	return opts, nil
}

// compilerFingerprint stats the resolved binary; a compiler missing from
// PATH still gets a fingerprint and fails later with an invocation error.
func compilerFingerprint(cfg *config.Config) string {
	path := cfg.CompilerPath()
	if filepath.Base(path) == path {
		if found, err := exec.LookPath(path); err == nil {
			path = found
		}
	}
	extra := append([]string{cfg.Suite.Mode}, cfg.Compiler.Coverage...)
	return runner.Fingerprint(path, cfg.Compiler.Flags, extra...)
}

func writeReports(cfg *config.Config, rep *report.Report) error {
	if cfg.Report.JUnit != "" {
		if err := writeReportFile(cfg.Report.JUnit, rep, report.WriteJUnit); err != nil {
			return fmt.Errorf("junit report: %w", err)
		}
	}
	if cfg.Report.JSON != "" {
		if err := writeReportFile(cfg.Report.JSON, rep, report.WriteJSON); err != nil {
			return fmt.Errorf("json report: %w", err)
		}
	}
	return nil
}

func writeReportFile(path string, rep *report.Report, write func(w io.Writer, rep *report.Report) error) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
