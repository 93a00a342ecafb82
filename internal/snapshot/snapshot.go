// Package snapshot compares normalized output with golden fixtures and
// regenerates them in bless mode.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rogpeppe/go-internal/diff"
)

// Record is one differing line. A line present on one side only has the
// other side's Has flag unset. Line numbers are 1-based.
type Record struct {
	ExpectedLine int
	ActualLine   int
	Expected     string
	Actual       string
	HasExpected  bool
	HasActual    bool
}

func (r Record) String() string {
	switch {
	case r.HasExpected && r.HasActual:
		return fmt.Sprintf("line %d: expected %q, got %q", r.ExpectedLine, r.Expected, r.Actual)
	case r.HasExpected:
		return fmt.Sprintf("line %d: expected %q, got nothing", r.ExpectedLine, r.Expected)
	default:
		return fmt.Sprintf("line %d: unexpected %q", r.ActualLine, r.Actual)
	}
}

// Mismatch is a fixture whose content differs from the actual output.
type Mismatch struct {
	Fixture string
	Records []Record
	// Unified is a unified diff from the fixture to the actual output.
	Unified string
}

func (m *Mismatch) Error() string {
	if len(m.Records) == 0 {
		return fmt.Sprintf("%s: content differs", m.Fixture)
	}
	first := m.Records[0]
	line := first.ExpectedLine
	if !first.HasExpected {
		line = first.ActualLine
	}
	return fmt.Sprintf("%s: %d line(s) differ, first at line %d", m.Fixture, len(m.Records), line)
}

// Compare returns nil when expected and actual are byte-identical, otherwise
// a Mismatch naming fixture. A missing final newline is a difference.
func Compare(fixture, expected, actual string) *Mismatch {
	if expected == actual {
		return nil
	}
	return &Mismatch{
		Fixture: fixture,
		Records: Records(expected, actual),
		Unified: string(diff.Diff(fixture, []byte(expected), "actual", []byte(actual))),
	}
}

// splitLines splits on '\n'. The element after a final newline is kept as
// "", so "a\n" and "a" split differently.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Records computes the minimal set of differing lines from an LCS alignment.
// Inside a run of changes, deletions and insertions are paired in order.
// The common prefix and suffix are stripped first, so the table only covers
// the changed middle.
func Records(expected, actual string) []Record {
	full, fullB := splitLines(expected), splitLines(actual)
	pre := 0
	for pre < len(full) && pre < len(fullB) && full[pre] == fullB[pre] {
		pre++
	}
	suf := 0
	for suf < len(full)-pre && suf < len(fullB)-pre && full[len(full)-1-suf] == fullB[len(fullB)-1-suf] {
		suf++
	}
	a, b := full[pre:len(full)-suf], fullB[pre:len(fullB)-suf]
	n, m := len(a), len(b)

	// lcs[i][j] = длина LCS для a[i:] и b[j:]
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var (
		out     []Record
		deleted []int
		added   []int
	)
	flush := func() {
		k := 0
		for ; k < len(deleted) && k < len(added); k++ {
			out = append(out, Record{
				ExpectedLine: pre + deleted[k] + 1, Expected: a[deleted[k]], HasExpected: true,
				ActualLine: pre + added[k] + 1, Actual: b[added[k]], HasActual: true,
			})
		}
		for _, i := range deleted[k:] {
			out = append(out, Record{ExpectedLine: pre + i + 1, Expected: a[i], HasExpected: true})
		}
		for _, j := range added[k:] {
			out = append(out, Record{ActualLine: pre + j + 1, Actual: b[j], HasActual: true})
		}
		deleted, added = deleted[:0], added[:0]
	}

	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && a[i] == b[j]:
			flush()
			i++
			j++
		case j < m && (i == n || lcs[i][j+1] >= lcs[i+1][j]):
			added = append(added, j)
			j++
		default:
			deleted = append(deleted, i)
			i++
		}
	}
	flush()
	return out
}

// Read returns the fixture content. A missing fixture reads as empty.
func Read(path string) (string, bool, error) {
	// #nosec G304 -- fixture paths come from test discovery
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Bless makes the fixture at path hold actual. Empty output removes the
// fixture. It reports whether anything on disk changed.
func Bless(path, actual string) (bool, error) {
	current, exists, err := Read(path)
	if err != nil {
		return false, err
	}
	if actual == "" {
		if !exists {
			return false, nil
		}
		if err := os.Remove(path); err != nil {
			return false, fmt.Errorf("remove stale fixture: %w", err)
		}
		return true, nil
	}
	if exists && current == actual {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := writeAtomic(path, []byte(actual)); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic пишет во временный файл рядом и переименовывает его.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
