package diag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Summary holds the counts printed on the compiler's trailing summary line.
type Summary struct {
	Errors   int
	Warnings int
}

func (s Summary) Empty() bool {
	return s.Errors == 0 && s.Warnings == 0
}

// Severity is the severity the summary line is printed with.
func (s Summary) Severity() Severity {
	if s.Errors > 0 {
		return SevError
	}
	return SevWarning
}

// Message renders the summary without its severity prefix.
// Empty summaries render as "".
func (s Summary) Message() string {
	switch {
	case s.Errors > 0 && s.Warnings > 0:
		return fmt.Sprintf("aborting due to %s; %s", plural(s.Errors, "previous error"), emitted(s.Warnings))
	case s.Errors > 0:
		return "aborting due to " + plural(s.Errors, "previous error")
	case s.Warnings > 0:
		return emitted(s.Warnings)
	}
	return ""
}

// Line renders the full summary line, e.g. "error: aborting due to 2 previous errors".
func (s Summary) Line() string {
	if s.Empty() {
		return ""
	}
	return s.Severity().String() + ": " + s.Message()
}

func (s Summary) String() string {
	return fmt.Sprintf("%d errors, %d warnings", s.Errors, s.Warnings)
}

func emitted(n int) string {
	return plural(n, "warning") + " emitted"
}

// plural chooses singular wording exactly when n == 1.
func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

var (
	abortingRe = regexp.MustCompile(`^aborting due to (?:(\d+) )?previous errors?(?:; (\d+) warnings? emitted)?$`)
	emittedRe  = regexp.MustCompile(`^(\d+) warnings? emitted$`)
)

// ParseSummary recognises a summary message, with or without its
// "error: "/"warning: " prefix. The legacy "aborting due to previous error"
// form counts as one error.
func ParseSummary(msg string) (Summary, bool) {
	msg = strings.TrimSpace(msg)
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "warning: ")

	if m := abortingRe.FindStringSubmatch(msg); m != nil {
		sum := Summary{Errors: 1}
		if m[1] != "" {
			sum.Errors, _ = strconv.Atoi(m[1])
		}
		if m[2] != "" {
			sum.Warnings, _ = strconv.Atoi(m[2])
		}
		return sum, true
	}
	if m := emittedRe.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Summary{Warnings: n}, true
	}
	return Summary{}, false
}

// IsSummary reports whether d is the compiler's own summary diagnostic.
func IsSummary(d *Diagnostic) bool {
	if len(d.Spans) != 0 || !d.Severity.Counted() {
		return false
	}
	_, ok := ParseSummary(d.Message)
	return ok
}
