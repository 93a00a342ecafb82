package directive

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Mode is the expected compilation outcome.
type Mode uint8

const (
	// ModeDefault has no outcome expectation beyond annotations and fixtures.
	ModeDefault Mode = iota
	ModeCheckPass
	ModeBuildPass
	ModeRunPass
	ModeCheckFail
	ModeBuildFail
)

var modeNames = map[string]Mode{
	"check-pass": ModeCheckPass,
	"build-pass": ModeBuildPass,
	"run-pass":   ModeRunPass,
	"check-fail": ModeCheckFail,
	"build-fail": ModeBuildFail,
}

func (m Mode) String() string {
	for name, v := range modeNames {
		if v == m {
			return name
		}
	}
	return "default"
}

// ExpectsSuccess reports whether the mode requires zero errors.
func (m Mode) ExpectsSuccess() bool {
	return m == ModeCheckPass || m == ModeBuildPass || m == ModeRunPass
}

// ExpectsFailure reports whether the mode requires at least one error.
func (m Mode) ExpectsFailure() bool {
	return m == ModeCheckFail || m == ModeBuildFail
}

// NormalizeRule is a per-test `normalize-stderr` substitution.
type NormalizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Directives is the parsed `//@` header of a test.
type Directives struct {
	Mode                   Mode
	CompileFlags           []string
	Edition                string
	AuxBuilds              []string
	Env                    []string
	RunRustfix             bool
	MachineApplicableOnly  bool
	NormalizeStderr        []NormalizeRule
	ErrorPatterns          []string
	DontRequireAnnotations bool
	DontCheckStderr        bool
	Ignore                 []string
	Only                   []string
	Timeout                time.Duration
}

var editions = map[string]bool{"2015": true, "2018": true, "2021": true, "2024": true}

// osAliases maps target names used in directives onto GOOS values.
var osAliases = map[string]string{
	"macos": "darwin",
	"apple": "darwin",
}

var knownOS = map[string]bool{
	"aix": true, "android": true, "darwin": true, "dragonfly": true,
	"freebsd": true, "illumos": true, "ios": true, "js": true,
	"linux": true, "netbsd": true, "openbsd": true, "plan9": true,
	"solaris": true, "wasip1": true, "windows": true,
}

// archAliases maps target arch names onto GOARCH values.
var archAliases = map[string]string{
	"x86_64":      "amd64",
	"x86":         "386",
	"i686":        "386",
	"aarch64":     "arm64",
	"arm":         "arm",
	"riscv64":     "riscv64",
	"s390x":       "s390x",
	"powerpc64":   "ppc64",
	"powerpc64le": "ppc64le",
	"loongarch64": "loong64",
	"mips":        "mips",
	"mips64":      "mips64",
	"wasm32":      "wasm",
}

var pointerWidths = map[string]int{"16bit": 16, "32bit": 32, "64bit": 64}

// Target is the host that ignore-*/only-* conditions are evaluated against.
type Target struct {
	GOOS   string
	GOARCH string
	// PointerBits is strconv.IntSize for the host.
	PointerBits int
}

// HostTarget describes the running process.
func HostTarget() Target {
	return Target{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, PointerBits: strconv.IntSize}
}

func (t Target) String() string {
	return t.GOOS + "/" + t.GOARCH
}

// knownCondition reports whether cond can be evaluated by matches.
func knownCondition(cond string) bool {
	if _, ok := osAliases[cond]; ok {
		return true
	}
	if _, ok := archAliases[cond]; ok {
		return true
	}
	if _, ok := pointerWidths[cond]; ok {
		return true
	}
	return knownOS[cond] || cond == "unix"
}

// matches evaluates one condition; the set is closed, see knownCondition.
func (t Target) matches(cond string) bool {
	if alias, ok := osAliases[cond]; ok {
		return alias == t.GOOS
	}
	if arch, ok := archAliases[cond]; ok {
		return arch == t.GOARCH
	}
	if bits, ok := pointerWidths[cond]; ok {
		return bits == t.PointerBits
	}
	if cond == "unix" {
		switch t.GOOS {
		case "windows", "plan9", "js", "wasip1":
			return false
		}
		return true
	}
	return cond == t.GOOS
}

// Ignored reports whether the test must be skipped on target, with the
// directive that decided it. Every listed only-* condition must hold.
func (d *Directives) Ignored(target Target) (string, bool) {
	for _, cond := range d.Ignore {
		if cond == "test" || target.matches(cond) {
			return "ignore-" + cond, true
		}
	}
	for _, cond := range d.Only {
		if !target.matches(cond) {
			return "only-" + cond + " (running on " + target.String() + ")", true
		}
	}
	return "", false
}

var normalizeRe = regexp.MustCompile(`^"(.*?)"\s*->\s*"(.*)"$`)

// apply parses one `//@` line body into d.
func (d *Directives) apply(body string) error {
	name, value, hasValue := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	if name == "" {
		return fmt.Errorf("empty directive")
	}
	if strings.HasPrefix(name, "[") {
		return fmt.Errorf("revisions are not supported: %q", name)
	}

	if mode, ok := modeNames[name]; ok {
		if hasValue {
			return fmt.Errorf("%s takes no value", name)
		}
		if d.Mode != ModeDefault && d.Mode != mode {
			return fmt.Errorf("conflicting modes %s and %s", d.Mode, mode)
		}
		d.Mode = mode
		return nil
	}

	switch name {
	case "compile-flags":
		args, err := splitArgs(value)
		if err != nil {
			return fmt.Errorf("compile-flags: %w", err)
		}
		d.CompileFlags = append(d.CompileFlags, args...)
	case "edition":
		if !editions[value] {
			return fmt.Errorf("unknown edition %q", value)
		}
		if d.Edition != "" && d.Edition != value {
			return fmt.Errorf("edition set twice (%s, %s)", d.Edition, value)
		}
		d.Edition = value
	case "aux-build":
		if value == "" {
			return fmt.Errorf("aux-build needs a file")
		}
		d.AuxBuilds = append(d.AuxBuilds, value)
	case "compile-env":
		key, _, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("compile-env expects KEY=VALUE, got %q", value)
		}
		d.Env = append(d.Env, value)
	case "run-rustfix":
		d.RunRustfix = true
	case "rustfix-only-machine-applicable":
		d.MachineApplicableOnly = true
	case "normalize-stderr", "normalize-stderr-test":
		m := normalizeRe.FindStringSubmatch(value)
		if m == nil {
			return fmt.Errorf(`normalize-stderr expects "REGEX" -> "REPLACEMENT", got %q`, value)
		}
		re, err := regexp.Compile(m[1])
		if err != nil {
			return fmt.Errorf("normalize-stderr: %w", err)
		}
		d.NormalizeStderr = append(d.NormalizeStderr, NormalizeRule{Pattern: re, Replacement: m[2]})
	case "error-pattern":
		if value == "" {
			return fmt.Errorf("error-pattern needs a text")
		}
		d.ErrorPatterns = append(d.ErrorPatterns, value)
	case "dont-require-annotations":
		d.DontRequireAnnotations = true
	case "dont-check-compiler-stderr":
		d.DontCheckStderr = true
	case "timeout":
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if dur <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", dur)
		}
		d.Timeout = dur
	default:
		switch {
		case strings.HasPrefix(name, "ignore-") && len(name) > len("ignore-"):
			cond := strings.TrimPrefix(name, "ignore-")
			if cond != "test" && !knownCondition(cond) {
				return fmt.Errorf("unknown condition %q in %s", cond, name)
			}
			d.Ignore = append(d.Ignore, cond)
		case strings.HasPrefix(name, "only-") && len(name) > len("only-"):
			cond := strings.TrimPrefix(name, "only-")
			if !knownCondition(cond) {
				return fmt.Errorf("unknown condition %q in %s", cond, name)
			}
			d.Only = append(d.Only, cond)
		default:
			return fmt.Errorf("unknown directive %q", name)
		}
	}
	return nil
}
