package invoke

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"uitest/internal/diag"
)

// wireDiagnostic mirrors one line of the compiler's --error-format=json output.
type wireDiagnostic struct {
	MessageType string           `json:"$message_type"`
	Message     string           `json:"message"`
	Code        *wireCode        `json:"code"`
	Level       string           `json:"level"`
	Spans       []wireSpan       `json:"spans"`
	Children    []wireDiagnostic `json:"children"`
	Rendered    *string          `json:"rendered"`
}

type wireCode struct {
	Code        string  `json:"code"`
	Explanation *string `json:"explanation"`
}

type wireSpan struct {
	FileName                string     `json:"file_name"`
	ByteStart               uint32     `json:"byte_start"`
	ByteEnd                 uint32     `json:"byte_end"`
	LineStart               uint32     `json:"line_start"`
	LineEnd                 uint32     `json:"line_end"`
	ColumnStart             uint32     `json:"column_start"`
	ColumnEnd               uint32     `json:"column_end"`
	IsPrimary               bool       `json:"is_primary"`
	Text                    []wireText `json:"text"`
	Label                   *string    `json:"label"`
	SuggestedReplacement    *string    `json:"suggested_replacement"`
	SuggestionApplicability *string    `json:"suggestion_applicability"`
}

type wireText struct {
	Text           string `json:"text"`
	HighlightStart uint32 `json:"highlight_start"`
	HighlightEnd   uint32 `json:"highlight_end"`
}

// maxLine bounds a single JSON record; rendered macro backtraces get long.
const maxLine = 16 << 20

// DecodeStream splits compiler stderr into structured diagnostics and the
// remaining plain lines, both in emission order.
func DecodeStream(r io.Reader) ([]diag.Diagnostic, []string, error) {
	var (
		diags []diag.Diagnostic
		other []string
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), "{") {
			other = append(other, line)
			continue
		}
		var w wireDiagnostic
		if err := json.Unmarshal([]byte(line), &w); err != nil {
			other = append(other, line)
			continue
		}
		if w.MessageType != "" && w.MessageType != "diagnostic" {
			// артефакты и future-incompat отчёты не диагностики
			continue
		}
		if w.Level == "" && w.Message == "" {
			other = append(other, line)
			continue
		}
		diags = append(diags, w.convert())
	}
	return diags, other, sc.Err()
}

func (w *wireDiagnostic) convert() diag.Diagnostic {
	sev, ok := diag.ParseSeverity(w.Level)
	if !ok {
		sev = diag.SevNote
	}
	d := diag.Diagnostic{
		Severity:    sev,
		Message:     w.Message,
		FailureNote: w.Level == "failure-note",
	}
	if w.Code != nil {
		d.Code = diag.Code(w.Code.Code)
	}
	if w.Rendered != nil {
		d.Rendered = *w.Rendered
	}
	var edits []diag.Edit
	app := diag.ApplicabilityUnspecified
	for _, ws := range w.Spans {
		sp := ws.convert()
		d.Spans = append(d.Spans, sp)
		if ws.SuggestedReplacement != nil {
			edits = append(edits, diag.Edit{Span: sp, Replacement: *ws.SuggestedReplacement})
			if ws.SuggestionApplicability != nil {
				app = diag.ParseApplicability(*ws.SuggestionApplicability)
			}
		}
	}
	if len(edits) > 0 {
		d.Suggestions = append(d.Suggestions, diag.Suggestion{
			Title:         w.Message,
			Applicability: app,
			Edits:         edits,
		})
	}
	for i := range w.Children {
		d.Children = append(d.Children, w.Children[i].convert())
	}
	return d
}

func (ws *wireSpan) convert() diag.Span {
	sp := diag.Span{
		File:      ws.FileName,
		ByteStart: ws.ByteStart,
		ByteEnd:   ws.ByteEnd,
		LineStart: ws.LineStart,
		LineEnd:   ws.LineEnd,
		ColStart:  ws.ColumnStart,
		ColEnd:    ws.ColumnEnd,
		Primary:   ws.IsPrimary,
	}
	if ws.Label != nil {
		sp.Label = *ws.Label
	}
	for _, t := range ws.Text {
		sp.Text = append(sp.Text, diag.SpanText{
			Text:           t.Text,
			HighlightStart: t.HighlightStart,
			HighlightEnd:   t.HighlightEnd,
		})
	}
	return sp
}
