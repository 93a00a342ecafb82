package normalize

import (
	"regexp"
	"strings"
)

// Rule is one regular-expression substitution.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

func (r Rule) apply(s string) string {
	return r.Pattern.ReplaceAllString(s, r.Replacement)
}

// DefaultTools are the tool names whose version banners are replaced by $VERSION.
var DefaultTools = []string{"rustc", "rustdoc", "cargo", "clippy-driver", "rustfmt"}

// builtinRules returns the volatile-token rules. Each rule's output can never
// match any rule again, which keeps the built-in set idempotent.
func builtinRules(tools []string) []Rule {
	if len(tools) == 0 {
		tools = DefaultTools
	}
	quoted := make([]string, len(tools))
	for i, t := range tools {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return []Rule{
		{
			Name:        "crate-hash",
			Pattern:     regexp.MustCompile(`-[0-9a-f]{16}\b`),
			Replacement: "-$$HASH",
		},
		{
			Name:        "bracket-hash",
			Pattern:     regexp.MustCompile(`\[[0-9a-f]{16}\]`),
			Replacement: "[$$HASH]",
		},
		{
			Name:        "pointer",
			Pattern:     regexp.MustCompile(`\b0x[0-9a-fA-F]{8,16}\b`),
			Replacement: "$$HEX",
		},
		{
			Name: "version",
			Pattern: regexp.MustCompile(`\b(` + strings.Join(quoted, "|") +
				`) [0-9]+\.[0-9]+\.[0-9]+(?:-[0-9A-Za-z.]+)?(?: \([0-9a-f]{7,40} [0-9]{4}-[0-9]{2}-[0-9]{2}\))?`),
			Replacement: "${1} $$VERSION",
		},
	}
}
