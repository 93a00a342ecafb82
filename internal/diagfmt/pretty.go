package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"uitest/internal/diag"
	"uitest/internal/source"
)

type palette struct {
	sev    map[diag.Severity]*color.Color
	gutter *color.Color
	bold   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevNote:    color.New(color.FgGreen, color.Bold),
			diag.SevHelp:    color.New(color.FgCyan, color.Bold),
		},
		gutter: color.New(color.FgBlue, color.Bold),
		bold:   color.New(color.Bold),
	}
	all := []*color.Color{p.gutter, p.bold}
	for _, c := range p.sev {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty форматирует диагностики в человекочитаемый вид, в стиле компилятора:
// заголовок, строка "-->", фрагмент исходника с подчёркиваниями, затем
// "= note:" / "= help:". Каждый блок завершается пустой строкой.
func Pretty(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) error {
	for i := range diags {
		if _, err := io.WriteString(w, Render(&diags[i], fs, opts)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Render renders one diagnostic block. Source lines come from the spans' own
// text when the compiler sent it, otherwise from fs (which may be nil).
func Render(d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) string {
	r := renderer{fs: fs, opts: opts, pal: newPalette(opts.Color)}
	r.width = r.gutterWidth(d)
	r.block(d, true)
	return r.b.String()
}

type renderer struct {
	b     strings.Builder
	fs    *source.FileSet
	opts  PrettyOpts
	pal   palette
	width int
}

func (r *renderer) gutterWidth(d *diag.Diagnostic) int {
	if r.opts.AnonymizeLines {
		return 2
	}
	maxLine := uint32(0)
	var walk func(d *diag.Diagnostic)
	walk = func(d *diag.Diagnostic) {
		for _, sp := range d.Spans {
			maxLine = max(maxLine, sp.LineEnd, sp.LineStart)
		}
		for i := range d.Children {
			walk(&d.Children[i])
		}
	}
	walk(d)
	return max(1, len(strconv.FormatUint(uint64(maxLine), 10)))
}

func (r *renderer) pad() string {
	return strings.Repeat(" ", r.width)
}

func (r *renderer) lineNo(n uint32) string {
	if r.opts.AnonymizeLines {
		return "LL"
	}
	return fmt.Sprintf("%*d", r.width, n)
}

func (r *renderer) headline(d *diag.Diagnostic) {
	sev := r.pal.sev[d.Severity]
	label := d.Severity.String()
	if d.Code.IsErrorCode() {
		label += "[" + string(d.Code) + "]"
	}
	fmt.Fprintf(&r.b, "%s%s\n", sev.Sprint(label), r.pal.bold.Sprint(": "+d.Message))
}

func (r *renderer) block(d *diag.Diagnostic, top bool) {
	r.headline(d)
	drewSnippet := r.snippet(d)

	var trailers []*diag.Diagnostic
	var nested []*diag.Diagnostic
	if r.opts.ShowNotes {
		for i := range d.Children {
			child := &d.Children[i]
			if _, ok := child.Primary(); ok {
				nested = append(nested, child)
			} else {
				trailers = append(trailers, child)
			}
		}
	}
	if len(trailers) > 0 {
		if drewSnippet {
			fmt.Fprintf(&r.b, "%s\n", r.pal.gutter.Sprint(r.pad()+" |"))
		}
		for _, child := range trailers {
			r.trailer(child)
		}
	}
	for _, child := range nested {
		r.block(child, false)
	}
	if top && r.opts.ShowFixes {
		for _, sg := range d.Suggestions {
			r.suggestion(sg)
		}
	}
}

// trailer renders a spanless child as "= note: msg". Continuation lines of
// a multi-line message are aligned under the message start.
func (r *renderer) trailer(child *diag.Diagnostic) {
	indent := strings.Repeat(" ", r.width+len(" = "+child.Severity.String()+": "))
	lines := strings.Split(child.Message, "\n")
	fmt.Fprintf(&r.b, "%s%s %s%s\n", r.pad(), r.pal.gutter.Sprint(" ="), r.pal.bold.Sprint(child.Severity.String()+":"), " "+lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(&r.b, "%s%s\n", indent, l)
	}
}

func (r *renderer) snippet(d *diag.Diagnostic) bool {
	primary, ok := d.Primary()
	if !ok || !primary.Located() {
		return false
	}

	files := []string{primary.File}
	byFile := map[string][]diag.Span{}
	for _, sp := range d.Spans {
		if !sp.Located() {
			continue
		}
		if _, seen := byFile[sp.File]; !seen && sp.File != primary.File {
			files = append(files, sp.File)
		}
		byFile[sp.File] = append(byFile[sp.File], sp)
	}

	for i, file := range files {
		spans := byFile[file]
		arrow := "-->"
		anchor := primary
		if i > 0 {
			arrow = ":::"
			anchor = spans[0]
		}
		fmt.Fprintf(&r.b, "%s%s %s:%d:%d\n", r.pad(), r.pal.gutter.Sprint(arrow), file, anchor.LineStart, anchor.ColStart)
		r.fileSnippet(d.Severity, file, spans)
	}
	return true
}

func (r *renderer) fileSnippet(sev diag.Severity, file string, spans []diag.Span) {
	arena := newLineArena()
	for _, sp := range spans {
		r.place(arena, file, sp)
	}

	bar := r.pal.gutter.Sprint(r.pad() + " |")
	fmt.Fprintf(&r.b, "%s\n", bar)
	var prev uint32
	for _, rec := range arena.ordered() {
		if prev != 0 && rec.line > prev+1 {
			fmt.Fprintf(&r.b, "%s\n", r.pal.gutter.Sprint("..."))
		}
		prev = rec.line
		text := strings.TrimRight(rec.text, " ")
		if text != "" {
			text = " " + text
		}
		fmt.Fprintf(&r.b, "%s%s\n", r.pal.gutter.Sprint(r.lineNo(rec.line)+" |"), text)
		for _, row := range underlineRows(rec, '^', '-') {
			fmt.Fprintf(&r.b, "%s %s\n", bar, r.pal.sev[sev].Sprint(row))
		}
	}
}

// place registers a span in the arena. A multi-line span marks the rest of
// its first line and the head of its last line; the label goes to the last.
func (r *renderer) place(arena *lineArena, file string, sp diag.Span) {
	first := r.sourceLine(file, sp, sp.LineStart)
	if sp.LineEnd <= sp.LineStart {
		idx := arena.slot(sp.LineStart, first)
		start := displayCol(first, sp.ColStart)
		end := max(displayCol(first, sp.ColEnd), start+1)
		arena.addMark(idx, mark{start: start, end: end, primary: sp.Primary, label: sp.Label})
		return
	}

	idx := arena.slot(sp.LineStart, first)
	start := displayCol(first, sp.ColStart)
	end := max(displayCol(first, uint32(len([]rune(first)))+1), start+1)
	arena.addMark(idx, mark{start: start, end: end, primary: sp.Primary})

	last := r.sourceLine(file, sp, sp.LineEnd)
	idx = arena.slot(sp.LineEnd, last)
	end = max(displayCol(last, sp.ColEnd), 1)
	arena.addMark(idx, mark{start: 0, end: end, primary: sp.Primary, label: sp.Label})
}

func (r *renderer) sourceLine(file string, sp diag.Span, line uint32) string {
	if line >= sp.LineStart {
		if i := int(line - sp.LineStart); i < len(sp.Text) {
			return sp.Text[i].Text
		}
	}
	if r.fs == nil {
		return ""
	}
	id, ok := r.fs.GetLatest(file)
	if !ok {
		return ""
	}
	return r.fs.Get(id).GetLine(line)
}

func (r *renderer) suggestion(sg diag.Suggestion) {
	fmt.Fprintf(&r.b, "%s%s\n", r.pal.sev[diag.SevHelp].Sprint("help"), r.pal.bold.Sprint(": "+sg.Title))
	if r.fs == nil {
		return
	}
	bar := r.pal.gutter.Sprint(r.pad() + " |")
	for _, edit := range sg.Edits {
		preview, err := buildEditPreview(r.fs, edit)
		if err != nil {
			continue
		}
		fmt.Fprintf(&r.b, "%s\n", bar)
		for i, l := range preview.before {
			fmt.Fprintf(&r.b, "%s %s\n", r.pal.sev[diag.SevError].Sprint(r.lineNo(edit.Span.LineStart+uint32(i))+" -"), l)
		}
		for i, l := range preview.after {
			fmt.Fprintf(&r.b, "%s %s\n", r.pal.sev[diag.SevNote].Sprint(r.lineNo(edit.Span.LineStart+uint32(i))+" +"), l)
		}
	}
	fmt.Fprintf(&r.b, "%s\n", bar)
}
