package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"uitest/internal/directive"
	"uitest/internal/snapshot"
)

// Fixture is one golden file next to a test source.
type Fixture struct {
	Path   string
	Text   string
	Exists bool
}

// TestCase is one discovered test source with everything read from disk
// up front. It is never modified after Load.
type TestCase struct {
	ID     string // путь от корня тестов через "/", ключ сортировки отчёта
	Path   string // абсолютный путь
	Root   string
	Source []byte

	Parsed *directive.Parsed
	// ParseErr blocks the test before invocation when set.
	ParseErr error

	Stderr   Fixture
	Fixed    Fixture
	Coverage Fixture
}

// Dir is the directory holding the source.
func (tc *TestCase) Dir() string {
	return filepath.Dir(tc.Path)
}

// Stem is the file name without its extension.
func (tc *TestCase) Stem() string {
	base := filepath.Base(tc.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AuxPaths resolves the aux-build directives against the auxiliary
// directory next to the test.
func (tc *TestCase) AuxPaths() []string {
	if tc.Parsed == nil {
		return nil
	}
	out := make([]string, 0, len(tc.Parsed.Directives.AuxBuilds))
	for _, aux := range tc.Parsed.Directives.AuxBuilds {
		out = append(out, filepath.Join(tc.Dir(), "auxiliary", filepath.FromSlash(aux)))
	}
	return out
}

// FixturePath returns the path of the fixture with the given extension,
// e.g. ".stderr".
func FixturePath(source, ext string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ext
}

// Load reads the source, its directives and its fixtures. A malformed
// directive is recorded in ParseErr, not returned: it fails this case only.
func Load(root, id string) (*TestCase, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, filepath.FromSlash(id))
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test source: %w", err)
	}

	tc := &TestCase{
		ID:     id,
		Path:   path,
		Root:   absRoot,
		Source: src,
	}
	tc.Parsed, tc.ParseErr = directive.Parse(id, src)

	for _, f := range []struct {
		ext string
		dst *Fixture
	}{
		{".stderr", &tc.Stderr},
		{".fixed", &tc.Fixed},
		{".coverage", &tc.Coverage},
	} {
		p := FixturePath(path, f.ext)
		text, ok, err := snapshot.Read(p)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		*f.dst = Fixture{Path: p, Text: text, Exists: ok}
	}
	return tc, nil
}
