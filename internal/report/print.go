package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"uitest/internal/diag"
	"uitest/internal/diagfmt"
)

// PrintOptions controls the human-readable report.
type PrintOptions struct {
	Color bool
	// Verbose lists passing cases and prints full diffs.
	Verbose bool
}

type palette struct {
	ok, fail, bless, ignore, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		bless:  color.New(color.FgBlue, color.Bold),
		ignore: color.New(color.FgYellow),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.bless, p.ignore, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s Status) string {
	switch s {
	case Passed:
		return p.ok.Sprint("ok")
	case Failed:
		return p.fail.Sprint("FAILED")
	case Blessed:
		return p.bless.Sprint("blessed")
	case Ignored:
		return p.ignore.Sprint("ignored")
	}
	return s.String()
}

// Print writes one line per case (failures, blessed and ignored ones always;
// passes only when verbose), the failure details, and the summary line.
func Print(w io.Writer, rep *Report, opts PrintOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	for _, res := range rep.Results {
		if res.Status == Passed && !opts.Verbose {
			continue
		}
		fmt.Fprintf(&b, "test %s ... %s", res.ID, p.status(res.Status))
		switch {
		case res.Status == Ignored && res.Ignore != "":
			fmt.Fprintf(&b, " (%s)", res.Ignore)
		case res.Cached:
			b.WriteString(p.dim.Sprint(" (up to date)"))
		}
		b.WriteString("\n")
		for _, warn := range res.Warnings {
			fmt.Fprintf(&b, "    %s %s\n", p.ignore.Sprint("warning:"), warn)
		}
	}

	if failures := rep.Failures(); len(failures) > 0 {
		b.WriteString("\nfailures:\n")
		for _, res := range failures {
			fmt.Fprintf(&b, "\n---- %s ----\n", res.ID)
			for _, reason := range res.Reasons {
				fmt.Fprintf(&b, "  %s\n", reason)
				if reason.Expected != "" || reason.Actual != "" {
					fmt.Fprintf(&b, "    expected: %s\n", reason.Expected)
					fmt.Fprintf(&b, "    actual:   %s\n", reason.Actual)
				}
				if reason.Detail != "" && (opts.Verbose || reason.Kind == KindSnapshot) {
					if reason.Kind == KindAnnotation && len(res.Emitted) > 0 {
						writeEmitted(&b, res.Emitted, opts.Color)
						continue
					}
					for _, line := range strings.Split(strings.TrimRight(reason.Detail, "\n"), "\n") {
						b.WriteString("    ")
						b.WriteString(colorDiffLine(p, line))
						b.WriteString("\n")
					}
				}
			}
		}
	}

	result := p.ok.Sprint("ok")
	if rep.ExitCode() != 0 {
		result = p.fail.Sprint("FAILED")
	}
	if rep.Canceled {
		result += " (aborted)"
	}
	fmt.Fprintf(&b, "\ntest result: %s. %s; finished in %.2fs\n", result, rep.Summary, rep.Duration.Seconds())

	_, err := io.WriteString(w, b.String())
	return err
}

func colorDiffLine(p palette, line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return p.dim.Sprint(line)
	case strings.HasPrefix(line, "+"):
		return p.ok.Sprint(line)
	case strings.HasPrefix(line, "-"):
		return p.fail.Sprint(line)
	}
	return line
}

// writeEmitted renders diags the way the compiler prints them, indented under
// the failure.
func writeEmitted(b *strings.Builder, diags []diag.Diagnostic, colored bool) {
	var out strings.Builder
	// запись в strings.Builder не падает
	_ = diagfmt.Pretty(&out, diags, nil, diagfmt.PrettyOpts{Color: colored, ShowNotes: true, ShowFixes: true})
	b.WriteString("    emitted:\n")
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line != "" {
			b.WriteString("    ")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
}
