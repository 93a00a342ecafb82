// Package normalize rewrites volatile parts of compiler output into stable
// placeholders so that fixtures compare across machines and toolchain builds.
package normalize

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"uitest/internal/diag"
	"uitest/internal/directive"
)

// Paths are the host directories replaced by placeholders.
type Paths struct {
	// TestDir is the directory of the test source, replaced by $DIR.
	TestDir string
	// SrcRoot is the test root, replaced by $SRC_DIR.
	SrcRoot string
	// BuildDir is the per-test build directory, replaced by $TEST_BUILD_DIR.
	BuildDir string
}

type pathRule struct {
	prefix      string
	placeholder string
}

// Normalizer applies the built-in rules followed by per-test rules.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	paths    Paths
	pathRepl []pathRule
	builtins []Rule
	extra    []Rule
}

// Options tunes the built-in rule set.
type Options struct {
	// Tools overrides DefaultTools for the $VERSION rule.
	Tools []string
}

// New builds a normalizer for one test.
func New(paths Paths, opts Options, extra ...directive.NormalizeRule) *Normalizer {
	n := &Normalizer{
		paths:    paths,
		builtins: builtinRules(opts.Tools),
	}
	add := func(dir, placeholder string) {
		if dir == "" {
			return
		}
		clean := filepath.Clean(dir)
		n.pathRepl = append(n.pathRepl, pathRule{prefix: clean, placeholder: placeholder})
		if slashed := filepath.ToSlash(clean); slashed != clean {
			n.pathRepl = append(n.pathRepl, pathRule{prefix: slashed, placeholder: placeholder})
		}
	}
	add(paths.TestDir, "$DIR")
	add(paths.SrcRoot, "$SRC_DIR")
	add(paths.BuildDir, "$TEST_BUILD_DIR")
	// вложенные пути заменяем первыми: самый длинный префикс выигрывает
	sort.SliceStable(n.pathRepl, func(i, j int) bool {
		return len(n.pathRepl[i].prefix) > len(n.pathRepl[j].prefix)
	})

	for i, r := range extra {
		n.extra = append(n.extra, Rule{
			Name:        "normalize-stderr#" + strconv.Itoa(i+1),
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		})
	}
	return n
}

// Text normalizes a block of compiler output.
func (n *Normalizer) Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = norm.NFC.String(s)
	for _, p := range n.pathRepl {
		s = strings.ReplaceAll(s, p.prefix, p.placeholder)
	}
	for _, r := range n.builtins {
		s = r.apply(s)
	}
	for _, r := range n.extra {
		s = r.apply(s)
	}
	return s
}

// Source normalizes source text (post-fix output and .fixed fixtures):
// line endings and Unicode form only, so the text still compiles.
func (n *Normalizer) Source(s string) string {
	return norm.NFC.String(strings.ReplaceAll(s, "\r\n", "\n"))
}

// File rewrites a span file path: paths under the test root become
// root-relative, paths under the build directory lose that prefix, and
// relative paths are kept.
func (n *Normalizer) File(path string) string {
	if path == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	clean := filepath.Clean(path)
	for _, base := range []string{n.paths.SrcRoot, n.paths.BuildDir} {
		if base == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(base), clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return n.Text(filepath.ToSlash(clean))
}

// Diagnostics returns a normalized copy of the stream. The input is not
// modified. Suggestion replacements are source text and stay untouched.
func (n *Normalizer) Diagnostics(in []diag.Diagnostic) []diag.Diagnostic {
	if in == nil {
		return nil
	}
	out := make([]diag.Diagnostic, len(in))
	for i := range in {
		out[i] = n.diagnostic(&in[i])
	}
	return out
}

func (n *Normalizer) diagnostic(d *diag.Diagnostic) diag.Diagnostic {
	cp := *d
	cp.Message = n.Text(d.Message)
	cp.Rendered = n.Text(d.Rendered)
	cp.Spans = n.spans(d.Spans)
	cp.Children = n.Diagnostics(d.Children)
	if d.Suggestions != nil {
		cp.Suggestions = make([]diag.Suggestion, len(d.Suggestions))
		for i, sg := range d.Suggestions {
			edits := make([]diag.Edit, len(sg.Edits))
			for j, e := range sg.Edits {
				edits[j] = diag.Edit{Span: n.span(e.Span), Replacement: e.Replacement}
			}
			cp.Suggestions[i] = diag.Suggestion{
				Title:         n.Text(sg.Title),
				Applicability: sg.Applicability,
				Edits:         edits,
			}
		}
	}
	return cp
}

func (n *Normalizer) spans(in []diag.Span) []diag.Span {
	if in == nil {
		return nil
	}
	out := make([]diag.Span, len(in))
	for i, sp := range in {
		out[i] = n.span(sp)
	}
	return out
}

func (n *Normalizer) span(sp diag.Span) diag.Span {
	sp.File = n.File(sp.File)
	sp.Label = n.Text(sp.Label)
	if sp.Text != nil {
		text := make([]diag.SpanText, len(sp.Text))
		copy(text, sp.Text)
		sp.Text = text
	}
	return sp
}
