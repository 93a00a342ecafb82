// Package match reconciles in-source annotations with the diagnostics the
// compiler actually emitted.
package match

import (
	"fmt"
	"sort"
	"strings"

	"uitest/internal/diag"
	"uitest/internal/directive"
)

// Kind classifies an annotation mismatch.
type Kind uint8

const (
	// Unexpected is a diagnostic that no annotation claimed.
	Unexpected Kind = iota
	// Missing is an annotation that no diagnostic satisfied.
	Missing
)

func (k Kind) String() string {
	if k == Missing {
		return "expected diagnostic but none emitted"
	}
	return "diagnostic emitted but not expected"
}

// Mismatch is one unmatched annotation or diagnostic.
type Mismatch struct {
	Kind Kind
	// Line is the source line, 0 for unlocated.
	Line     int
	Expected string
	Actual   string
}

func (m *Mismatch) Error() string {
	loc := "unlocated"
	if m.Line > 0 {
		loc = fmt.Sprintf("line %d", m.Line)
	}
	switch m.Kind {
	case Missing:
		return fmt.Sprintf("%s: %s: %s", loc, m.Kind, m.Expected)
	default:
		return fmt.Sprintf("%s: %s: %s", loc, m.Kind, m.Actual)
	}
}

// Options configures one matching run.
type Options struct {
	// File is the test source as it appears in normalized span paths.
	// Diagnostics located in other files count as unlocated.
	File string
	// AllowUnannotated suppresses Unexpected mismatches.
	AllowUnannotated bool
}

// Pair is a claimed annotation together with the diagnostic that satisfied it.
type Pair struct {
	Annotation directive.Annotation
	Diagnostic diag.Diagnostic
}

// Result of matching.
type Result struct {
	Matched    []Pair
	Mismatches []Mismatch
}

// OK reports whether every annotation and diagnostic was accounted for.
func (r Result) OK() bool {
	return len(r.Mismatches) == 0
}

// candidate is a diagnostic an annotation may claim.
type candidate struct {
	line int
	d    *diag.Diagnostic
}

// Match pairs annotations with diagnostics. Error and warning annotations
// claim top-level error/warning diagnostics on their target line; note and
// help annotations claim sub-messages (or standalone notes/helps) there.
func Match(anns []directive.Annotation, diags []diag.Diagnostic, opts Options) Result {
	var primaryAnns, subAnns []directive.Annotation
	for _, a := range anns {
		if a.Kind.Severity().Counted() {
			primaryAnns = append(primaryAnns, a)
		} else {
			subAnns = append(subAnns, a)
		}
	}

	var counted, subs []candidate
	for i := range diags {
		d := &diags[i]
		line := int(d.Line(opts.File))
		if d.Severity.Counted() {
			counted = append(counted, candidate{line: line, d: d})
		} else {
			subs = append(subs, candidate{line: line, d: d})
		}
		for j := range d.Children {
			child := &d.Children[j]
			childLine := line
			if sp, ok := child.Primary(); ok {
				childLine = int(child.Line(opts.File))
				if !sp.Located() {
					childLine = line
				}
			}
			subs = append(subs, candidate{line: childLine, d: child})
		}
	}

	var res Result
	pairs, missing, unexpected := matchByLine(primaryAnns, counted)
	res.Matched = append(res.Matched, pairs...)
	res.Mismatches = append(res.Mismatches, missing...)
	if !opts.AllowUnannotated {
		res.Mismatches = append(res.Mismatches, unexpected...)
	}

	// неаннотированные note/help никогда не считаются ошибкой
	pairs, missing, _ = matchByLine(subAnns, subs)
	res.Matched = append(res.Matched, pairs...)
	res.Mismatches = append(res.Mismatches, missing...)

	sort.SliceStable(res.Mismatches, func(i, j int) bool {
		mi, mj := res.Mismatches[i], res.Mismatches[j]
		if mi.Line != mj.Line {
			return mi.Line < mj.Line
		}
		if mi.Kind != mj.Kind {
			return mi.Kind < mj.Kind
		}
		return mi.Expected+mi.Actual < mj.Expected+mj.Actual
	})
	return res
}

// compatible reports whether annotation a may claim diagnostic d.
func compatible(a *directive.Annotation, d *diag.Diagnostic) bool {
	if a.Kind.Severity() != d.Severity {
		return false
	}
	return a.Message == "" || strings.Contains(d.MatchText(), a.Message)
}

func matchByLine(anns []directive.Annotation, cands []candidate) (pairs []Pair, missing, unexpected []Mismatch) {
	annsByLine := map[int][]int{}
	candsByLine := map[int][]int{}
	var lines []int
	seen := map[int]bool{}
	for i, a := range anns {
		annsByLine[a.Line] = append(annsByLine[a.Line], i)
		if !seen[a.Line] {
			seen[a.Line] = true
			lines = append(lines, a.Line)
		}
	}
	for i, c := range cands {
		candsByLine[c.line] = append(candsByLine[c.line], i)
		if !seen[c.line] {
			seen[c.line] = true
			lines = append(lines, c.line)
		}
	}
	sort.Ints(lines)

	for _, line := range lines {
		la, lc := annsByLine[line], candsByLine[line]
		assign := matchLine(anns, cands, la, lc)

		claimed := make([]bool, len(lc))
		for ai, ci := range assign {
			a := anns[la[ai]]
			if ci < 0 {
				missing = append(missing, Mismatch{Kind: Missing, Line: line, Expected: a.String()})
				continue
			}
			claimed[ci] = true
			pairs = append(pairs, Pair{Annotation: a, Diagnostic: *cands[lc[ci]].d})
		}
		for ci, ok := range claimed {
			if !ok {
				d := cands[lc[ci]].d
				unexpected = append(unexpected, Mismatch{Kind: Unexpected, Line: line, Actual: describe(d)})
			}
		}
	}
	return pairs, missing, unexpected
}

// matchLine assigns the annotations of one line to candidates of the same
// line. It returns, per annotation, the index into lc or -1.
func matchLine(anns []directive.Annotation, cands []candidate, la, lc []int) []int {
	ok := func(ai, ci int) bool {
		return compatible(&anns[la[ai]], cands[lc[ci]].d)
	}

	// жадно, в порядке исходника
	assign := make([]int, len(la))
	used := make([]bool, len(lc))
	unmatched := 0
	for ai := range la {
		assign[ai] = -1
		for ci := range lc {
			if !used[ci] && ok(ai, ci) {
				assign[ai] = ci
				used[ci] = true
				break
			}
		}
		if assign[ai] < 0 {
			unmatched++
		}
	}
	if unmatched == 0 {
		return assign
	}

	// жадный порядок мог заблокировать решение: ищем максимальное паросочетание
	alt := maxBipartite(len(la), len(lc), ok)
	if countAssigned(alt) > countAssigned(assign) {
		return alt
	}
	return assign
}

// maxBipartite is Kuhn's augmenting-path matching. Annotations are visited
// in source order so ties resolve the same way on every run.
func maxBipartite(nLeft, nRight int, ok func(l, r int) bool) []int {
	matchRight := make([]int, nRight)
	for i := range matchRight {
		matchRight[i] = -1
	}
	var try func(l int, visited []bool) bool
	try = func(l int, visited []bool) bool {
		for r := 0; r < nRight; r++ {
			if visited[r] || !ok(l, r) {
				continue
			}
			visited[r] = true
			if matchRight[r] < 0 || try(matchRight[r], visited) {
				matchRight[r] = l
				return true
			}
		}
		return false
	}
	for l := 0; l < nLeft; l++ {
		try(l, make([]bool, nRight))
	}

	assign := make([]int, nLeft)
	for i := range assign {
		assign[i] = -1
	}
	for r, l := range matchRight {
		if l >= 0 {
			assign[l] = r
		}
	}
	return assign
}

func countAssigned(assign []int) int {
	n := 0
	for _, v := range assign {
		if v >= 0 {
			n++
		}
	}
	return n
}

func describe(d *diag.Diagnostic) string {
	text := strings.ToUpper(d.Severity.String()) + " " + d.Message
	if d.Code != "" {
		text += " [" + string(d.Code) + "]"
	}
	return text
}
