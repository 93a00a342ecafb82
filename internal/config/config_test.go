package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

const manifest = `
[suite]
root = "tests/ui"
include = ["**/*.rs"]
exclude = ["**/auxiliary/**", "**/wip/**"]
mode = "coverage"

[compiler]
path = "./bin/rustc"
flags = ["-Zui-testing"]
coverage = ["./bin/cov", "--counts"]
timeout = "90s"

[run]
jobs = 3
max_fix_rounds = 2
color = "off"

[report]
junit = "out/junit.xml"
`

func TestLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, manifest)
	nested := filepath.Join(root, "tests", "ui", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != path || cfg.Root != root {
		t.Fatalf("unexpected manifest location %q (root %q)", cfg.Path, cfg.Root)
	}
	if cfg.TestRoot() != filepath.Join(root, "tests", "ui") {
		t.Fatalf("unexpected test root %q", cfg.TestRoot())
	}
	if cfg.CompilerPath() != filepath.Join(root, "bin", "rustc") {
		t.Fatalf("unexpected compiler path %q", cfg.CompilerPath())
	}
	if cfg.Compiler.Timeout.Duration != 90*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Compiler.Timeout)
	}
	if diff := cmp.Diff([]string{"**/auxiliary/**", "**/wip/**"}, cfg.Suite.Exclude); diff != "" {
		t.Fatalf("exclude mismatch (-want +got):\n%s", diff)
	}
	if !cfg.CoverageMode() || cfg.Jobs() != 3 || cfg.Run.MaxFixRounds != 2 {
		t.Fatalf("unexpected run settings %+v", cfg.Run)
	}
	// значения по умолчанию для незаданных ключей сохраняются
	if cfg.Run.UI != "auto" || !cfg.Run.Stamps || cfg.BuildDir() != filepath.Join(root, "build", "uitest") {
		t.Fatalf("defaults lost: %+v build=%s", cfg.Run, cfg.BuildDir())
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != "" || cfg.Root != dir {
		t.Fatalf("unexpected config location %q %q", cfg.Path, cfg.Root)
	}
	if cfg.CompilerPath() != "rustc" {
		t.Fatalf("bare compiler name must stay for PATH lookup, got %q", cfg.CompilerPath())
	}
}

func TestLoadFileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"missing suite", "[compiler]\npath = \"rustc\"\n", "missing [suite]"},
		{"missing compiler", "[suite]\nroot = \"ui\"\n", "missing [compiler]"},
		{"empty compiler", "[suite]\n[compiler]\npath = \"\"\n", "empty [compiler].path"},
		{"unknown key", "[suite]\nroots = \"ui\"\n[compiler]\n", "unknown keys: suite.roots"},
		{"bad mode", "[suite]\nmode = \"fast\"\n[compiler]\n", "[suite].mode"},
		{"bad glob", "[suite]\ninclude = [\"[\"]\n[compiler]\n", "invalid glob"},
		{"bad timeout", "[suite]\n[compiler]\ntimeout = \"soon\"\n", "failed to parse TOML"},
		{"bad color", "[suite]\n[compiler]\n[run]\ncolor = \"always\"\n", "[run].color"},
	}
	for _, tc := range cases {
		path := writeManifest(t, t.TempDir(), tc.content)
		_, err := LoadFile(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"UITEST_BLESS":    "true",
		"UITEST_COMPILER": "/opt/rust/bin/rustc",
		"UITEST_JOBS":     "7",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default(t.TempDir())
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if !cfg.Run.Bless || cfg.CompilerPath() != "/opt/rust/bin/rustc" || cfg.Jobs() != 7 {
		t.Fatalf("env not applied: %+v %+v", cfg.Run, cfg.Compiler)
	}

	env["UITEST_JOBS"] = "many"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatal("expected error for bad UITEST_JOBS")
	}
	env["UITEST_JOBS"] = ""
	env["UITEST_BLESS"] = "maybe"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatal("expected error for bad UITEST_BLESS")
	}
}
