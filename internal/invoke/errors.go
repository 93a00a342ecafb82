package invoke

import (
	"fmt"
	"strings"
	"time"
)

// InvocationError reports a compiler process that could not start, crashed,
// or ran past its timeout. Ordinary compile errors are not invocation errors.
type InvocationError struct {
	Path     string
	Args     []string
	ExitCode int // -1 when killed by a signal or never started
	TimedOut bool
	Timeout  time.Duration
	Stderr   string // хвост stderr, без JSON
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		fmt.Fprintf(&b, "%s timed out after %s", e.Path, e.Timeout)
	case e.ExitCode > 1:
		fmt.Fprintf(&b, "%s crashed with exit status %d", e.Path, e.ExitCode)
	case e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Path, e.Err)
	default:
		fmt.Fprintf(&b, "%s terminated abnormally", e.Path)
	}
	if e.Stderr != "" {
		b.WriteString("\n")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// tail keeps the last n lines of captured output for error messages.
func tail(lines []string, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
