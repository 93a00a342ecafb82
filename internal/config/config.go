// Package config loads uitest.toml and overlays the environment on it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"uitest/internal/fix"
	"uitest/internal/invoke"
	"uitest/internal/suite"
)

// FileName is the manifest looked up from the working directory upwards.
const FileName = "uitest.toml"

// Suite modes.
const (
	ModeUI       = "ui"
	ModeCoverage = "coverage"
)

// Config is the effective configuration of a run.
type Config struct {
	// Path is the manifest that was loaded, empty when none was found.
	Path string `toml:"-"`
	// Root is the directory relative paths resolve against: the manifest's
	// directory, or the start directory without a manifest.
	Root string `toml:"-"`

	Suite    SuiteConfig    `toml:"suite"`
	Compiler CompilerConfig `toml:"compiler"`
	Run      RunConfig      `toml:"run"`
	Report   ReportConfig   `toml:"report"`
}

type SuiteConfig struct {
	Root     string   `toml:"root"`
	BuildDir string   `toml:"build_dir"`
	Include  []string `toml:"include"`
	Exclude  []string `toml:"exclude"`
	// Mode "coverage" checks a .coverage listing for every case.
	Mode string `toml:"mode"`
}

type CompilerConfig struct {
	Path  string   `toml:"path"`
	Flags []string `toml:"flags"`
	// Coverage is the command that runs an instrumented build; the source
	// path is appended.
	Coverage []string `toml:"coverage"`
	Tools    []string `toml:"tools"`
	Timeout  Duration `toml:"timeout"`
}

type RunConfig struct {
	Jobs         int    `toml:"jobs"`
	MaxFixRounds int    `toml:"max_fix_rounds"`
	Bless        bool   `toml:"bless"`
	Stamps       bool   `toml:"stamps"`
	Color        string `toml:"color"` // auto|on|off
	UI           string `toml:"ui"`    // auto|on|off
}

type ReportConfig struct {
	JUnit   string `toml:"junit"`
	JSON    string `toml:"json"`
	Timings bool   `toml:"timings"`
}

// Duration decodes TOML strings such as "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Suite: SuiteConfig{
			Root:     filepath.Join("tests", "ui"),
			BuildDir: filepath.Join("build", "uitest"),
			Mode:     ModeUI,
		},
		Compiler: CompilerConfig{
			Path:    "rustc",
			Timeout: Duration{invoke.DefaultTimeout},
		},
		Run: RunConfig{
			MaxFixRounds: fix.DefaultMaxRounds,
			Stamps:       true,
			Color:        "auto",
			UI:           "auto",
		},
	}
}

// Find walks up from startDir looking for uitest.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load returns the defaults overlaid with the nearest manifest, if any.
// The environment is not consulted; see ApplyEnv.
func Load(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		abs, err := filepath.Abs(startDir)
		if err != nil {
			return nil, err
		}
		cfg := Default(abs)
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile decodes one manifest over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	cfg.Path = path
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("suite") {
		return nil, fmt.Errorf("%s: missing [suite]", path)
	}
	if !meta.IsDefined("compiler") {
		return nil, fmt.Errorf("%s: missing [compiler]", path)
	}
	if meta.IsDefined("compiler", "path") && strings.TrimSpace(cfg.Compiler.Path) == "" {
		return nil, fmt.Errorf("%s: empty [compiler].path", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerations, bounds and glob syntax.
func (c *Config) Validate() error {
	switch c.Suite.Mode {
	case ModeUI, ModeCoverage:
	default:
		return fmt.Errorf("[suite].mode must be %q or %q, got %q", ModeUI, ModeCoverage, c.Suite.Mode)
	}
	for key, v := range map[string]string{"color": c.Run.Color, "ui": c.Run.UI} {
		switch v {
		case "auto", "on", "off":
		default:
			return fmt.Errorf("[run].%s must be auto, on or off, got %q", key, v)
		}
	}
	if c.Run.Jobs < 0 {
		return fmt.Errorf("[run].jobs must not be negative, got %d", c.Run.Jobs)
	}
	if c.Run.MaxFixRounds <= 0 {
		return fmt.Errorf("[run].max_fix_rounds must be positive, got %d", c.Run.MaxFixRounds)
	}
	if c.Compiler.Timeout.Duration <= 0 {
		return fmt.Errorf("[compiler].timeout must be positive, got %s", c.Compiler.Timeout)
	}
	return c.Filter().Validate()
}

// ApplyEnv overlays UITEST_BLESS, UITEST_COMPILER and UITEST_JOBS. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("UITEST_BLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("UITEST_BLESS: %w", err)
		}
		c.Run.Bless = b
	}
	if v, ok := lookup("UITEST_COMPILER"); ok && strings.TrimSpace(v) != "" {
		c.Compiler.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup("UITEST_JOBS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("UITEST_JOBS: expected a non-negative number, got %q", v)
		}
		c.Run.Jobs = n
	}
	return nil
}

// Filter returns the discovery filter of the suite.
func (c *Config) Filter() suite.Filter {
	return suite.Filter{Include: c.Suite.Include, Exclude: c.Suite.Exclude}
}

// TestRoot is the absolute test root.
func (c *Config) TestRoot() string {
	return c.resolve(c.Suite.Root)
}

// BuildDir is the absolute build directory.
func (c *Config) BuildDir() string {
	return c.resolve(c.Suite.BuildDir)
}

// CompilerPath resolves a compiler given as a relative path against Root;
// bare names are left for PATH lookup.
func (c *Config) CompilerPath() string {
	p := c.Compiler.Path
	if strings.ContainsRune(p, '/') || strings.ContainsRune(p, filepath.Separator) {
		return c.resolve(p)
	}
	return p
}

// Jobs is the worker count, GOMAXPROCS when unset.
func (c *Config) Jobs() int {
	if c.Run.Jobs > 0 {
		return c.Run.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// CoverageMode reports whether every case is checked for coverage.
func (c *Config) CoverageMode() bool {
	return c.Suite.Mode == ModeCoverage
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}
