package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompareIdentical(t *testing.T) {
	if m := Compare("a.stderr", "error: x\n", "error: x\n"); m != nil {
		t.Fatalf("expected no mismatch, got %v", m)
	}
}

func TestRecordsChangedLine(t *testing.T) {
	expected := "error: one\n  |\nLL | let a = 1;\n"
	actual := "error: one\n  |\nLL | let b = 1;\n"
	want := []Record{{
		ExpectedLine: 3, Expected: "LL | let a = 1;", HasExpected: true,
		ActualLine: 3, Actual: "LL | let b = 1;", HasActual: true,
	}}
	if diff := cmp.Diff(want, Records(expected, actual)); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestRecordsInsertAndDelete(t *testing.T) {
	expected := "a\nb\nc\n"
	actual := "a\nc\nd\n"
	want := []Record{
		{ExpectedLine: 2, Expected: "b", HasExpected: true},
		{ActualLine: 3, Actual: "d", HasActual: true},
	}
	if diff := cmp.Diff(want, Records(expected, actual)); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestRecordsLargeOutputSingleChange(t *testing.T) {
	// таблица 20k×20k не поместилась бы в память без обрезки общих краёв
	lines := make([]string, 20000)
	for i := range lines {
		lines[i] = fmt.Sprintf("LL | let v%d = %d;", i, i)
	}
	expected := strings.Join(lines, "\n") + "\n"
	lines[12345] = "LL | let changed = 0;"
	actual := strings.Join(lines, "\n") + "\n"

	want := []Record{{
		ExpectedLine: 12346, Expected: "LL | let v12345 = 12345;", HasExpected: true,
		ActualLine: 12346, Actual: "LL | let changed = 0;", HasActual: true,
	}}
	if diff := cmp.Diff(want, Records(expected, actual)); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}
}

func TestTrailingDifferencesAreReal(t *testing.T) {
	m := Compare("a.stderr", "error: x\n", "error: x")
	if m == nil {
		t.Fatalf("missing final newline must be a mismatch")
	}
	want := []Record{{ExpectedLine: 2, Expected: "", HasExpected: true}}
	if diff := cmp.Diff(want, m.Records); diff != "" {
		t.Fatalf("records (-want +got):\n%s", diff)
	}

	m = Compare("a.stderr", "error: x\n", "error: x \n")
	if m == nil || len(m.Records) != 1 || m.Records[0].Actual != "error: x " {
		t.Fatalf("trailing whitespace must be a mismatch, got %+v", m)
	}
}

func TestMismatchUnifiedDiff(t *testing.T) {
	m := Compare("tests/ui/a.stderr", "error: old\n", "error: new\n")
	if m == nil {
		t.Fatalf("expected mismatch")
	}
	for _, want := range []string{"tests/ui/a.stderr", "-error: old", "+error: new"} {
		if !strings.Contains(m.Unified, want) {
			t.Fatalf("unified diff lacks %q:\n%s", want, m.Unified)
		}
	}
	if got := m.Error(); got != "tests/ui/a.stderr: 1 line(s) differ, first at line 1" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestBlessRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "case.stderr")
	outputs := []string{
		"error: aborting due to 1 previous error\n",
		"warning: unused\n\nwarning: 1 warning emitted\n",
		"no trailing newline",
		"trailing space \n",
	}
	for _, actual := range outputs {
		if _, err := Bless(path, actual); err != nil {
			t.Fatalf("Bless: %v", err)
		}
		expected, exists, err := Read(path)
		if err != nil || !exists {
			t.Fatalf("Read after bless: %v exists=%v", err, exists)
		}
		if m := Compare(path, expected, actual); m != nil {
			t.Fatalf("verification after bless failed: %v\n%s", m, m.Unified)
		}
	}
}

func TestBlessReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.stderr")
	changed, err := Bless(path, "x\n")
	if err != nil || !changed {
		t.Fatalf("first bless: changed=%v err=%v", changed, err)
	}
	changed, err = Bless(path, "x\n")
	if err != nil || changed {
		t.Fatalf("second bless must be a no-op: changed=%v err=%v", changed, err)
	}
}

func TestBlessEmptyRemovesFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.stderr")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Bless(path, "")
	if err != nil || !changed {
		t.Fatalf("Bless: changed=%v err=%v", changed, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("fixture still present: %v", err)
	}
	changed, err = Bless(path, "")
	if err != nil || changed {
		t.Fatalf("removing an absent fixture must be a no-op: changed=%v err=%v", changed, err)
	}
}

func TestReadMissing(t *testing.T) {
	content, exists, err := Read(filepath.Join(t.TempDir(), "absent.stderr"))
	if err != nil || exists || content != "" {
		t.Fatalf("Read = %q,%v,%v", content, exists, err)
	}
}
