package version

import (
	"strings"

	"github.com/fatih/color"
)

// Version information for the uitest CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Format renders "uitest <version>" followed by the optional build metadata,
// one item per line. With colorize the major, minor and patch parts are
// highlighted.
func Format(colorize bool) string {
	var b strings.Builder
	b.WriteString("uitest ")
	b.WriteString(semver(colorize))
	b.WriteString("\n")
	if GitCommit != "" {
		b.WriteString("commit: " + GitCommit)
		if GitMessage != "" {
			b.WriteString(" (" + GitMessage + ")")
		}
		b.WriteString("\n")
	}
	if BuildDate != "" {
		b.WriteString("built:  " + BuildDate + "\n")
	}
	return b.String()
}

func semver(colorize bool) string {
	parts := strings.SplitN(Version, ".", 3)
	if !colorize || len(parts) != 3 {
		return Version
	}
	palette := []*color.Color{versionMajorColor, versionMinorColor, versionPatchColor}
	for i, c := range palette {
		c.EnableColor()
		// суффикс вида -dev остаётся без цвета
		if i == 2 {
			num, rest, _ := strings.Cut(parts[2], "-")
			parts[2] = c.Sprint(num)
			if rest != "" {
				parts[2] += "-" + rest
			}
			continue
		}
		parts[i] = c.Sprint(parts[i])
	}
	return strings.Join(parts, ".")
}
