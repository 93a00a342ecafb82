package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"uitest/internal/coverage"
	"uitest/internal/diag"
)

// DefaultTimeout bounds one compiler process when neither the test nor the
// configuration sets a timeout.
const DefaultTimeout = 60 * time.Second

// Request describes one compilation of one source file.
type Request struct {
	Source  string
	Flags   []string
	Edition string
	Aux     []string
	Env     []string // KEY=VALUE поверх окружения процесса
	Dir     string
	Timeout time.Duration
}

// Result is what a finished compiler process produced.
type Result struct {
	Stream   []diag.Diagnostic
	Other    []string // строки stderr, которые не JSON
	Stdout   string
	ExitCode int
	Duration time.Duration
}

// Snapshot splits the stream into diagnostics and the compiler's summary.
func (r *Result) Snapshot() diag.Snapshot {
	return diag.NewSnapshot(r.Stream)
}

// Compiler runs the compiler under test.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
	// Coverage runs the instrumented program and returns per-line counts.
	Coverage(ctx context.Context, req Request) (map[int]uint64, error)
}

// ExecCompiler runs an external compiler binary that speaks the JSON
// diagnostic format on stderr.
type ExecCompiler struct {
	Path      string
	BaseFlags []string
	// CoverageCmd is run with the source path appended; its stdout holds
	// "<line>:<count>" records.
	CoverageCmd []string
}

// Args returns the full argument vector for req, without the binary.
func (c *ExecCompiler) Args(req Request) []string {
	args := append([]string(nil), c.BaseFlags...)
	args = append(args, "--error-format=json")
	if req.Edition != "" {
		args = append(args, "--edition="+req.Edition)
	}
	args = append(args, req.Flags...)
	for _, aux := range req.Aux {
		args = append(args, "--aux", aux)
	}
	return append(args, req.Source)
}

// Compile runs the compiler. Exit status 0 and 1 are normal outcomes; any
// other status, a signal, or a timeout is an InvocationError.
func (c *ExecCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	args := c.Args(req)
	stdout, stderr, code, dur, err := c.run(ctx, c.Path, args, req)
	if err != nil {
		return nil, err
	}

	stream, other, decodeErr := DecodeStream(bytes.NewReader(stderr))
	res := &Result{
		Stream:   stream,
		Other:    other,
		Stdout:   string(stdout),
		ExitCode: code,
		Duration: dur,
	}
	if decodeErr != nil {
		return res, &InvocationError{Path: c.Path, Args: args, ExitCode: code, Err: fmt.Errorf("read diagnostics: %w", decodeErr)}
	}
	if code != 0 && code != 1 {
		return res, &InvocationError{Path: c.Path, Args: args, ExitCode: code, Stderr: tail(other, 20)}
	}
	return res, nil
}

// Coverage runs CoverageCmd for req.Source and parses the per-line counts.
func (c *ExecCompiler) Coverage(ctx context.Context, req Request) (map[int]uint64, error) {
	if len(c.CoverageCmd) == 0 {
		return nil, errors.New("no coverage command configured")
	}
	args := append(append([]string(nil), c.CoverageCmd[1:]...), req.Source)
	stdout, stderr, code, _, err := c.run(ctx, c.CoverageCmd[0], args, req)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &InvocationError{
			Path:     c.CoverageCmd[0],
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(string(stderr)),
		}
	}
	return coverage.ParseCounts(string(stdout))
}

func (c *ExecCompiler) run(ctx context.Context, path string, args []string, req Request) (stdout, stderr []byte, code int, dur time.Duration, err error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), req.Env...)
	// внуки компилятора могут держать pipe открытым
	cmd.WaitDelay = 2 * time.Second
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	runErr := cmd.Run()
	dur = time.Since(start)

	if ctx.Err() != nil {
		// прерван весь прогон, а не этот тест
		return nil, nil, -1, dur, fmt.Errorf("%s: %w", path, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, nil, -1, dur, &InvocationError{
			Path:     path,
			Args:     args,
			ExitCode: -1,
			TimedOut: true,
			Timeout:  timeout,
			Err:      context.DeadlineExceeded,
		}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, nil, -1, dur, &InvocationError{Path: path, Args: args, ExitCode: -1, Err: runErr}
		}
		code = exitErr.ExitCode()
		if code < 0 {
			return nil, nil, code, dur, &InvocationError{
				Path:     path,
				Args:     args,
				ExitCode: code,
				Stderr:   strings.TrimSpace(errBuf.String()),
				Err:      runErr,
			}
		}
	}
	return outBuf.Bytes(), errBuf.Bytes(), code, dur, nil
}
