package directive

import (
	"fmt"
	"strings"

	"uitest/internal/diag"
)

// Kind is the severity an annotation expects.
type Kind uint8

const (
	KindError Kind = iota
	KindWarning
	KindNote
	KindHelp
)

var kindWords = map[string]Kind{
	"ERROR":   KindError,
	"WARN":    KindWarning,
	"WARNING": KindWarning,
	"NOTE":    KindNote,
	"HELP":    KindHelp,
}

func (k Kind) String() string {
	switch k {
	case KindError:
		return "ERROR"
	case KindWarning:
		return "WARN"
	case KindNote:
		return "NOTE"
	case KindHelp:
		return "HELP"
	}
	return "UNKNOWN"
}

// Severity maps the kind onto the diagnostic severity it expects.
func (k Kind) Severity() diag.Severity {
	switch k {
	case KindWarning:
		return diag.SevWarning
	case KindNote:
		return diag.SevNote
	case KindHelp:
		return diag.SevHelp
	}
	return diag.SevError
}

// Form is the marker shape an annotation was written with.
type Form uint8

const (
	// FormSame is `//~ KIND`: the line the marker is on.
	FormSame Form = iota
	// FormStacked is `//~| KIND`: the previous annotation's target.
	FormStacked
	// FormAbove is `//~^^ KIND`: one line up per caret.
	FormAbove
	// FormBelow is `//~vv KIND`: one line down per 'v'.
	FormBelow
	// FormUnlocated is `//~? KIND`: a diagnostic without a location.
	FormUnlocated
)

func (f Form) String() string {
	switch f {
	case FormSame:
		return "//~"
	case FormStacked:
		return "//~|"
	case FormAbove:
		return "//~^"
	case FormBelow:
		return "//~v"
	case FormUnlocated:
		return "//~?"
	}
	return "?"
}

// Annotation is an in-source expectation of one diagnostic.
type Annotation struct {
	// Line is the targeted source line, 0 for unlocated annotations.
	Line    int
	Kind    Kind
	Message string
	Form    Form
	// WrittenOn is the line the marker comment sits on.
	WrittenOn int
}

func (a Annotation) String() string {
	var b strings.Builder
	b.WriteString(a.Kind.String())
	if a.Message != "" {
		b.WriteByte(' ')
		b.WriteString(a.Message)
	}
	return b.String()
}

// Location renders the target for messages: "line 5" or "unlocated".
func (a Annotation) Location() string {
	if a.Form == FormUnlocated {
		return "unlocated"
	}
	return fmt.Sprintf("line %d", a.Line)
}

// annotationToken is the marker after `//~`, before targets are resolved.
type annotationToken struct {
	form    Form
	offset  int
	kind    Kind
	message string
	line    int
}

const annotationPrefix = "//~"

// scanAnnotation extracts the annotation token of one source line.
func scanAnnotation(text string, line int) (annotationToken, bool, error) {
	idx := strings.Index(text, annotationPrefix)
	if idx < 0 {
		return annotationToken{}, false, nil
	}
	rest := text[idx+len(annotationPrefix):]
	tok := annotationToken{form: FormSame, line: line}

	switch {
	case strings.HasPrefix(rest, "|"):
		tok.form = FormStacked
		rest = rest[1:]
	case strings.HasPrefix(rest, "?"):
		tok.form = FormUnlocated
		rest = rest[1:]
	case strings.HasPrefix(rest, "^"):
		tok.form = FormAbove
		n := len(rest) - len(strings.TrimLeft(rest, "^"))
		tok.offset = n
		rest = rest[n:]
	case strings.HasPrefix(rest, "v"):
		tok.form = FormBelow
		n := len(rest) - len(strings.TrimLeft(rest, "v"))
		tok.offset = n
		rest = rest[n:]
	}

	rest = strings.TrimLeft(rest, " \t")
	word, msg, _ := strings.Cut(rest, " ")
	word = strings.TrimSuffix(word, ":")
	kind, ok := kindWords[word]
	if !ok {
		if word == "" {
			return annotationToken{}, false, fmt.Errorf("annotation %s is missing a kind (ERROR, WARN, NOTE, HELP)", tok.form)
		}
		return annotationToken{}, false, fmt.Errorf("unknown annotation kind %q", word)
	}
	tok.kind = kind
	tok.message = strings.TrimSpace(msg)
	return tok, true, nil
}

// annotationFold resolves targets in source order. It carries the previous
// annotation's target so `//~|` can stack on it.
type annotationFold struct {
	prevTarget int
	hasPrev    bool
	prevForm   Form
	lineCount  int
}

func (f *annotationFold) step(tok annotationToken) (Annotation, error) {
	a := Annotation{Kind: tok.kind, Message: tok.message, Form: tok.form, WrittenOn: tok.line}
	switch tok.form {
	case FormSame:
		a.Line = tok.line
	case FormStacked:
		if !f.hasPrev {
			return Annotation{}, fmt.Errorf("`//~|` has no previous annotation to stack on")
		}
		if f.prevForm == FormUnlocated {
			return Annotation{}, fmt.Errorf("`//~|` cannot stack on an unlocated annotation")
		}
		a.Line = f.prevTarget
	case FormAbove:
		a.Line = tok.line - tok.offset
		if a.Line < 1 {
			return Annotation{}, fmt.Errorf("`//~%s` points above the first line", strings.Repeat("^", tok.offset))
		}
	case FormBelow:
		a.Line = tok.line + tok.offset
		if a.Line > f.lineCount {
			return Annotation{}, fmt.Errorf("`//~%s` points past the last line", strings.Repeat("v", tok.offset))
		}
	case FormUnlocated:
		a.Line = 0
	}
	// `//~|` keeps the target so further stacking continues on the same line
	f.prevTarget = a.Line
	f.prevForm = tok.form
	f.hasPrev = true
	return a, nil
}
