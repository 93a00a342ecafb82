package suite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects every Rust source below the test root.
var DefaultInclude = []string{"**/*.rs"}

// DefaultExclude skips auxiliary crates; they are built on behalf of the
// tests that name them, never run on their own.
var DefaultExclude = []string{"**/auxiliary/**"}

// Filter selects test sources by root-relative slash path.
type Filter struct {
	Include []string
	Exclude []string
}

func (f Filter) withDefaults() Filter {
	if len(f.Include) == 0 {
		f.Include = DefaultInclude
	}
	if f.Exclude == nil {
		f.Exclude = DefaultExclude
	}
	return f
}

// Validate rejects malformed glob patterns before a walk starts.
func (f Filter) Validate() error {
	for _, p := range append(append([]string(nil), f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Matches reports whether rel passes the filter.
func (f Filter) Matches(rel string) bool {
	f = f.withDefaults()
	rel = filepath.ToSlash(rel)
	for _, p := range f.Exclude {
		if doublestar.MatchUnvalidated(filepath.ToSlash(p), rel) {
			return false
		}
	}
	for _, p := range f.Include {
		if doublestar.MatchUnvalidated(filepath.ToSlash(p), rel) {
			return true
		}
	}
	return false
}

// Discover returns the root-relative slash paths of all test sources under
// root, sorted.
func Discover(root string, filter Filter) ([]string, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("compute relative path for %q: %w", path, err)
		}
		if filter.Matches(rel) {
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// Select narrows ids to those named by args. An argument selects an exact
// id, every id below a directory, or the ids matching a glob. Arguments may
// be given relative to the test root or as paths that contain it.
func Select(root string, ids, args []string) ([]string, error) {
	if len(args) == 0 {
		return ids, nil
	}
	patterns := make([]string, 0, len(args))
	for _, a := range args {
		p, err := relativeArg(root, a)
		if err != nil {
			return nil, err
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid path pattern %q", a)
		}
		patterns = append(patterns, p)
	}

	var out []string
	for _, id := range ids {
		for _, p := range patterns {
			if p == "." || id == p || strings.HasPrefix(id, p+"/") || doublestar.MatchUnvalidated(p, id) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func relativeArg(root, arg string) (string, error) {
	arg = filepath.Clean(arg)
	if !filepath.IsAbs(arg) {
		// путь от рабочей директории, если такой файл есть
		if abs, err := filepath.Abs(arg); err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				arg = abs
			}
		}
	}
	if filepath.IsAbs(arg) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(absRoot, arg)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%s is outside the test root %s", arg, root)
		}
		arg = rel
	}
	return filepath.ToSlash(arg), nil
}
