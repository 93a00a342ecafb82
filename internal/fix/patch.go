package fix

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"uitest/internal/diag"
	"uitest/internal/source"
)

// Patch replaces the text between Start and End with Replacement. Columns are
// 1-based characters and End is exclusive, as the compiler reports them.
type Patch struct {
	Start       source.LineCol
	End         source.LineCol
	Replacement string
	// Title is the suggestion the patch came from, for reporting only.
	Title string
}

func (p Patch) String() string {
	return fmt.Sprintf("%d:%d-%d:%d -> %q", p.Start.Line, p.Start.Col, p.End.Line, p.End.Col, p.Replacement)
}

// same compares position and text; titles do not matter.
func (p Patch) same(other Patch) bool {
	return p.Start == other.Start && p.End == other.End && p.Replacement == other.Replacement
}

// SkippedFix captures a suggestion edit that was not turned into a patch.
type SkippedFix struct {
	Title  string
	Reason string
}

// Collect gathers the patches suggested for file from the diagnostic stream,
// including the suggestions attached to child diagnostics. With machineOnly
// set only MachineApplicable suggestions are used; otherwise every suggestion
// that carries an edit is.
func Collect(diags []diag.Diagnostic, file string, machineOnly bool) ([]Patch, []SkippedFix) {
	var (
		patches []Patch
		skipped []SkippedFix
	)
	var walk func(d *diag.Diagnostic)
	walk = func(d *diag.Diagnostic) {
		for _, sugg := range d.Suggestions {
			if machineOnly && sugg.Applicability != diag.MachineApplicable {
				skipped = append(skipped, SkippedFix{Title: sugg.Title, Reason: "not machine applicable: " + sugg.Applicability.String()})
				continue
			}
			for _, e := range sugg.Edits {
				if !e.Span.Located() || !sameFile(e.Span.File, file) {
					skipped = append(skipped, SkippedFix{Title: sugg.Title, Reason: "edit outside " + file})
					continue
				}
				patches = append(patches, Patch{
					Start:       source.LineCol{Line: e.Span.LineStart, Col: e.Span.ColStart},
					End:         source.LineCol{Line: e.Span.LineEnd, Col: e.Span.ColEnd},
					Replacement: e.Replacement,
					Title:       sugg.Title,
				})
			}
		}
		for i := range d.Children {
			walk(&d.Children[i])
		}
	}
	for i := range diags {
		walk(&diags[i])
	}
	return patches, skipped
}

func sameFile(spanFile, file string) bool {
	a, b := filepath.Clean(spanFile), filepath.Clean(file)
	if a == b {
		return true
	}
	// компилятор может сообщить путь относительно рабочей директории
	if !filepath.IsAbs(a) && filepath.IsAbs(b) {
		return strings.HasSuffix(b, string(filepath.Separator)+a)
	}
	return false
}

// Dedupe collapses identical patches, keeping the first occurrence.
func Dedupe(patches []Patch) (unique []Patch, dropped []SkippedFix) {
	unique = make([]Patch, 0, len(patches))
outer:
	for _, p := range patches {
		for _, u := range unique {
			if u.same(p) {
				dropped = append(dropped, SkippedFix{Title: p.Title, Reason: "duplicate patch"})
				continue outer
			}
		}
		unique = append(unique, p)
	}
	return unique, dropped
}

// ApplyResult is the outcome of applying one round of patches.
type ApplyResult struct {
	Output  []byte
	Applied []Patch
	Skipped []SkippedFix
}

type resolved struct {
	patch Patch
	span  source.Span
}

// Apply applies patches to src. Identical patches are collapsed first; any
// two remaining patches that overlap make the whole round fail with an
// ambiguous ConvergenceError. The source is never modified in place.
func Apply(name string, src []byte, patches []Patch) (*ApplyResult, error) {
	unique, dropped := Dedupe(patches)
	spans, err := resolve(name, src, unique)
	if err != nil {
		return nil, err
	}
	if err := checkOverlaps(spans); err != nil {
		return nil, err
	}

	// с конца файла, чтобы смещения ещё не применённых правок не сдвигались
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].span.Start != spans[j].span.Start {
			return spans[i].span.Start > spans[j].span.Start
		}
		return spans[i].span.End > spans[j].span.End
	})
	out := append([]byte(nil), src...)
	for _, r := range spans {
		out = splice(out, r.span.Start, r.span.End, r.patch.Replacement)
	}

	return &ApplyResult{Output: out, Applied: unique, Skipped: dropped}, nil
}

func resolve(name string, src []byte, patches []Patch) ([]resolved, error) {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual(name, src))
	out := make([]resolved, 0, len(patches))
	for _, p := range patches {
		start, err := file.OffsetOf(p.Start)
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", p, err)
		}
		end, err := file.OffsetOf(p.End)
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", p, err)
		}
		if end < start {
			return nil, fmt.Errorf("patch %s: end before start", p)
		}
		out = append(out, resolved{
			patch: p,
			span:  source.Span{File: file.ID, Start: start, End: end},
		})
	}
	return out, nil
}

func checkOverlaps(spans []resolved) error {
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].span.Overlaps(spans[j].span) {
				return &ConvergenceError{
					Kind:      Ambiguous,
					Conflicts: [2]Patch{spans[i].patch, spans[j].patch},
				}
			}
		}
	}
	return nil
}

func splice(buf []byte, start, end uint32, text string) []byte {
	out := make([]byte, 0, len(buf)-int(end-start)+len(text))
	out = append(out, buf[:start]...)
	out = append(out, text...)
	return append(out, buf[end:]...)
}

// applyAscending builds the same output by reading the source front to back
// and copying the untouched gaps between patches.
func applyAscending(name string, src []byte, patches []Patch) ([]byte, error) {
	unique, _ := Dedupe(patches)
	spans, err := resolve(name, src, unique)
	if err != nil {
		return nil, err
	}
	if err := checkOverlaps(spans); err != nil {
		return nil, err
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].span.Start < spans[j].span.Start
	})
	var b strings.Builder
	cursor := uint32(0)
	for _, r := range spans {
		b.Write(src[cursor:r.span.Start])
		b.WriteString(r.patch.Replacement)
		cursor = r.span.End
	}
	b.Write(src[cursor:])
	return []byte(b.String()), nil
}
