package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// project lays out a manifest and a small suite; the compiler path points
// nowhere so nothing is ever executed.
func project(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"UITEST_BLESS", "UITEST_COMPILER", "UITEST_JOBS", "NO_COLOR"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"uitest.toml": `[suite]
root = "tests/ui"
build_dir = "build"

[compiler]
path = "./bin/no-such-compiler"

[run]
ui = "off"
color = "off"
`,
		"tests/ui/a/one.rs":              "fn main() {}\n",
		"tests/ui/a/two.rs":              "//@ check-pass\n//@ edition: 2021\nfn main() {}\n",
		"tests/ui/a/auxiliary/helper.rs": "pub fn helper() {}\n",
		"tests/ui/b/three.rs":            "//@ bogus-directive\nfn main() {}\n",
	})
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	code := execute(root, args)
	return code, stdout.String(), stderr.String()
}

func TestListCases(t *testing.T) {
	dir := project(t)
	manifest := filepath.Join(dir, "uitest.toml")

	code, out, errOut := runCLI(t, "list", "--config", manifest)
	if code != 0 {
		t.Fatalf("list exited %d: %s", code, errOut)
	}
	want := "a/one.rs\na/two.rs\nb/three.rs\n3 test case(s)\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("list output mismatch (-want +got):\n%s", diff)
	}

	code, out, _ = runCLI(t, "list", "--config", manifest, "--dirs")
	if code != 0 {
		t.Fatalf("list --dirs exited %d", code)
	}
	if diff := cmp.Diff("a (2)\nb (1)\n", out); diff != "" {
		t.Fatalf("list --dirs mismatch (-want +got):\n%s", diff)
	}

	code, out, _ = runCLI(t, "list", "--config", manifest, "--directives", "a")
	if code != 0 {
		t.Fatalf("list --directives exited %d", code)
	}
	if !strings.Contains(out, "a/two.rs\tcheck-pass; edition 2021; 0 annotation(s)\n") {
		t.Fatalf("missing header summary in:\n%s", out)
	}
	if strings.Contains(out, "b/three.rs") {
		t.Fatalf("path argument did not narrow the listing:\n%s", out)
	}
}

func TestListUnmatchedPathIsUsageError(t *testing.T) {
	dir := project(t)
	code, _, errOut := runCLI(t, "list", "--config", filepath.Join(dir, "uitest.toml"), "nowhere")
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(errOut, "no test cases match") {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
}

func TestRunWithMissingCompilerFails(t *testing.T) {
	dir := project(t)
	report := filepath.Join(dir, "out", "report.json")
	code, out, errOut := runCLI(t, "run", "--config", filepath.Join(dir, "uitest.toml"), "--json", report, "a/one.rs")
	if code != exitFailures {
		t.Fatalf("expected exit %d, got %d (stderr %q)", exitFailures, code, errOut)
	}
	if !strings.Contains(out, "test a/one.rs ... FAILED") {
		t.Fatalf("missing failed case line:\n%s", out)
	}
	if !strings.Contains(out, "test result: FAILED. 0 passed; 1 failed; 0 blessed; 0 ignored") {
		t.Fatalf("missing summary:\n%s", out)
	}
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("json report not written: %v", err)
	}
	var decoded struct {
		ExitCode int `json:"exit_code"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.ExitCode != 1 {
		t.Fatalf("report exit_code = %d", decoded.ExitCode)
	}
}

func TestUsageErrors(t *testing.T) {
	dir := project(t)
	manifest := filepath.Join(dir, "uitest.toml")
	cases := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"run", "--bogus"}},
		{"missing manifest", []string{"run", "--config", filepath.Join(dir, "absent.toml")}},
		{"bad ui mode", []string{"run", "--config", manifest, "--ui", "sometimes"}},
		{"bad trace level", []string{"run", "--config", manifest, "--trace-level", "loud"}},
		{"bad version format", []string{"version", "--format", "yaml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tc.args...)
			if code != exitUsage {
				t.Fatalf("expected exit %d, got %d (stderr %q)", exitUsage, code, errOut)
			}
			if !strings.HasPrefix(errOut, "uitest: ") {
				t.Fatalf("expected an error message, got %q", errOut)
			}
		})
	}
}

func TestVersionJSON(t *testing.T) {
	code, out, _ := runCLI(t, "version", "--format", "json")
	if code != 0 {
		t.Fatalf("version exited %d", code)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if payload.Tool != "uitest" || payload.Version == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestReadUIMode(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "auto": uiModeAuto, " ON ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		got, err := readUIMode(in)
		if err != nil {
			t.Fatalf("readUIMode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("readUIMode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := readUIMode("maybe"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if !shouldUseTUI(uiModeOn) || shouldUseTUI(uiModeOff) {
		t.Fatalf("explicit modes must win over terminal detection")
	}
}

func TestExitError(t *testing.T) {
	base := errors.New("boom")
	err := error(&ExitError{Code: 2, Err: base})
	if !errors.Is(err, base) {
		t.Fatalf("ExitError must unwrap to its cause")
	}
	if got := (&ExitError{Code: 1}).Error(); got != "exit status 1" {
		t.Fatalf("silent error text = %q", got)
	}

	var stderr bytes.Buffer
	root := newRootCmd()
	root.SetErr(&stderr)
	root.SetOut(&bytes.Buffer{})
	root.RunE = func(*cobra.Command, []string) error { return &ExitError{Code: 1} }
	if code := execute(root, []string{}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if stderr.Len() != 0 {
		t.Fatalf("silent exit wrote %q", stderr.String())
	}
}
