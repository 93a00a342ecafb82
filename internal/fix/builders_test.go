package fix

import (
	"strings"

	"uitest/internal/diag"
	"uitest/internal/testkit"
)

const scratch = "/build/ui/fix/main.rs"

// fixture is a twelve line program; line 10 columns 20-30 hold "old.size()".
var fixture = strings.Join([]string{
	"// run-rustfix",
	"",
	"struct Old;",
	"",
	"impl Old {",
	"    fn size(&self) -> usize { 0 }",
	"}",
	"",
	"fn main() {",
	"    let n: usize = old.size();",
	"    let _ = n;",
	"}",
}, "\n") + "\n"

func span(line, colStart, lineEnd, colEnd uint32) diag.Span {
	return diag.Span{
		File:      scratch,
		LineStart: line,
		LineEnd:   lineEnd,
		ColStart:  colStart,
		ColEnd:    colEnd,
		Primary:   true,
	}
}

func replace(line, colStart, colEnd uint32, text string) diag.Edit {
	return diag.Edit{Span: span(line, colStart, line, colEnd), Replacement: text}
}

func insert(line, col uint32, text string) diag.Edit {
	return diag.Edit{Span: span(line, col, line, col), Replacement: text}
}

// suggesting builds an error at the first edit carrying one suggestion.
func suggesting(msg string, app diag.Applicability, edits ...diag.Edit) diag.Diagnostic {
	return testkit.Error("E0599", edits[0].Span, msg, testkit.Suggestion("try this", app, edits...))
}
