package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShortDiagnostics renders diagnostics into a stable, single-line-per-entry
// representation used in failure reports next to annotation mismatches.
// Entries are sorted deterministically and returned as a single string
// (empty when nothing remains). Children are listed under their parent's
// location when includeChildren is set.
func FormatShortDiagnostics(diags []Diagnostic, includeChildren bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendShort(rendered, &diags[i], includeChildren)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		code := d.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, code, d.Path, d.Line, d.Column, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendShort(out []shortDiagnostic, d *Diagnostic, includeChildren bool) []shortDiagnostic {
	loc := resolveSpan(d)
	out = append(out, shortDiagnostic{
		Severity: d.Severity.String(),
		Code:     string(d.Code),
		Path:     loc.Path,
		Line:     loc.Line,
		Column:   loc.Column,
		Message:  sanitizeMessage(d.Message),
	})

	if includeChildren {
		for i := range d.Children {
			child := &d.Children[i]
			cloc := resolveSpan(child)
			if cloc.Line == 0 {
				cloc = loc
			}
			out = append(out, shortDiagnostic{
				Severity: child.Severity.String(),
				Code:     string(d.Code),
				Path:     cloc.Path,
				Line:     cloc.Line,
				Column:   cloc.Column,
				Message:  sanitizeMessage(child.Message),
			})
		}
	}

	return out
}

type resolvedSpan struct {
	Path   string
	Line   uint32
	Column uint32
}

func resolveSpan(d *Diagnostic) resolvedSpan {
	sp, ok := d.Primary()
	if !ok || !sp.Located() {
		return resolvedSpan{Path: "?"}
	}
	return resolvedSpan{
		Path:   normalizePath(sp.File),
		Line:   sp.LineStart,
		Column: sp.ColStart,
	}
}

func normalizePath(path string) string {
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
