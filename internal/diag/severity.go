package diag

import "strings"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevHelp is for help sub-messages and standalone help diagnostics.
	SevHelp Severity = iota
	// SevNote is for notes, including the compiler's failure notes.
	SevNote
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevHelp:
		return "help"
	case SevNote:
		return "note"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Counted reports whether diagnostics of this severity enter the summary line
// and must be claimed by an annotation.
func (s Severity) Counted() bool {
	return s >= SevWarning
}

// ParseSeverity maps the compiler's JSON "level" field onto a Severity.
// Internal compiler errors count as errors; failure notes count as notes.
func ParseSeverity(level string) (Severity, bool) {
	switch strings.TrimSpace(level) {
	case "error", "error: internal compiler error":
		return SevError, true
	case "warning":
		return SevWarning, true
	case "note", "failure-note":
		return SevNote, true
	case "help":
		return SevHelp, true
	}
	return SevError, false
}
