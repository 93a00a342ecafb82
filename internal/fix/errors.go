package fix

import (
	"fmt"
)

// ConvergenceKind classifies why the fix loop gave up.
type ConvergenceKind uint8

const (
	// Ambiguous: two patches of one round overlap.
	Ambiguous ConvergenceKind = iota
	// Exceeded: errors remain after the last allowed round.
	Exceeded
	// Stuck: errors remain but the compiler offers nothing that changes the source.
	Stuck
)

func (k ConvergenceKind) String() string {
	switch k {
	case Ambiguous:
		return "ambiguous fix"
	case Exceeded:
		return "fix did not converge"
	case Stuck:
		return "fix stuck"
	}
	return "unknown"
}

// ConvergenceError is fatal for the test case it belongs to.
type ConvergenceError struct {
	Kind      ConvergenceKind
	Round     int
	Errors    int      // ошибок после последней перекомпиляции
	Conflicts [2]Patch // только для Ambiguous
}

func (e *ConvergenceError) Error() string {
	switch e.Kind {
	case Ambiguous:
		return fmt.Sprintf("round %d: %s: %s overlaps %s", e.Round, e.Kind, e.Conflicts[0], e.Conflicts[1])
	case Exceeded:
		return fmt.Sprintf("%s after %d round(s): %d error(s) remain", e.Kind, e.Round, e.Errors)
	case Stuck:
		return fmt.Sprintf("round %d: %s: %d error(s) remain and no suggestion changes the source", e.Round, e.Kind, e.Errors)
	}
	return e.Kind.String()
}
