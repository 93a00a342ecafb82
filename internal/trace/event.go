package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	// KindWarning is a non-fatal problem worth showing even at LevelError.
	KindWarning
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeRun covers a whole run or bless invocation.
	ScopeRun Scope = iota + 1
	// ScopeCase covers one test case.
	ScopeCase
	// ScopeStage covers one pipeline stage of a case (parse, invoke, match...).
	ScopeStage
	// ScopeDetail covers fix rounds, compiler argv and the like.
	ScopeDetail
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeCase:
		return "case"
	case ScopeStage:
		return "stage"
	case ScopeDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time   time.Time         // wall-clock timestamp
	Seq    uint64            // global sequence number (monotonic)
	Kind   Kind              // event kind
	Scope  Scope             // granularity level
	SpanID uint64            // span identifier, 0 for points
	Case   string            // test case identity, empty for run-level events
	Name   string            // e.g. "invoke", "match", "fix:round"
	Detail string            // optional detail message
	Extra  map[string]string // extensible key-value pairs
}
