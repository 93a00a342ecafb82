package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Warning reports an absolute host path that survived normalization. It is
// never fatal: a stale rule shows up as diff noise, not as a false pass.
type Warning struct {
	Line int
	Path string
	Text string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("line %d: absolute path %q left after normalization", w.Line, w.Path)
}

var residueRe = regexp.MustCompile(
	`(?:^|[\s'"(=\x60])(/(?:home|Users|tmp|var|private|root|opt|mnt|build|workspace|srv)/[^\s'"):\x60]*|[A-Za-z]:\\[^\s'"):\x60]*)`)

// Residue lists the lines of normalized text that still carry absolute host
// paths.
func Residue(text string) []Warning {
	var out []Warning
	for i, line := range strings.Split(text, "\n") {
		for _, m := range residueRe.FindAllStringSubmatch(line, -1) {
			out = append(out, Warning{Line: i + 1, Path: m[1], Text: line})
		}
	}
	return out
}
