package directive

import (
	"fmt"
	"strings"
)

// ParseError is a malformed directive or annotation. It blocks the test.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Parsed is everything a test source declares about itself.
type Parsed struct {
	Directives  Directives
	Annotations []Annotation
}

const directivePrefix = "//@"

// Parse scans src for `//@` directives and `//~` annotations. The first
// malformed line aborts parsing with a *ParseError.
func Parse(file string, src []byte) (*Parsed, error) {
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	out := &Parsed{}
	fold := annotationFold{lineCount: len(lines)}
	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, directivePrefix) {
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, directivePrefix))
			if err := out.Directives.apply(body); err != nil {
				return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
			}
			continue
		}

		tok, ok, err := scanAnnotation(raw, lineNo)
		if err != nil {
			return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
		}
		if !ok {
			continue
		}
		ann, err := fold.step(tok)
		if err != nil {
			return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
		}
		out.Annotations = append(out.Annotations, ann)
	}
	return out, nil
}
