package version

import (
	"strings"
	"testing"
)

func override(t *testing.T, version, commit, message, date string) {
	t.Helper()
	origVersion, origCommit, origMessage, origDate := Version, GitCommit, GitMessage, BuildDate
	Version, GitCommit, GitMessage, BuildDate = version, commit, message, date
	t.Cleanup(func() {
		Version, GitCommit, GitMessage, BuildDate = origVersion, origCommit, origMessage, origDate
	})
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	if strings.Contains(Version, "\x1b[") {
		t.Error("Version must stay plain so -ldflags can override it")
	}
}

func TestFormat_Plain(t *testing.T) {
	override(t, "1.2.3", "abc123def456", "fix matcher", "2024-01-15T10:30:00Z")

	want := "uitest 1.2.3\ncommit: abc123def456 (fix matcher)\nbuilt:  2024-01-15T10:30:00Z\n"
	if got := Format(false); got != want {
		t.Errorf("Format(false) = %q, want %q", got, want)
	}
}

func TestFormat_EmptyOptionalFields(t *testing.T) {
	override(t, "1.2.3", "", "ignored without commit", "")

	if got := Format(false); got != "uitest 1.2.3\n" {
		t.Errorf("Format(false) = %q", got)
	}
}

func TestFormat_Colorized(t *testing.T) {
	override(t, "0.4.1-dev", "", "", "")

	got := Format(true)
	if !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected color codes in %q", got)
	}
	if !strings.HasSuffix(got, "-dev\n") {
		t.Errorf("suffix should stay plain: %q", got)
	}
	for _, part := range []string{"0", "4", "1"} {
		if !strings.Contains(got, part) {
			t.Errorf("missing version part %q in %q", part, got)
		}
	}
}

func TestFormat_NonSemver(t *testing.T) {
	override(t, "nightly", "", "", "")

	if got := Format(true); got != "uitest nightly\n" {
		t.Errorf("Format(true) = %q", got)
	}
}
