package suite

import (
	"sort"
	"sync"
)

// Registry collects the test cases of a run, indexed by identity and by
// directory. Loading happens in parallel, so Add is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	cases []*TestCase
	byID  map[string]int
	byDir map[string][]int // каталог (через "/") -> индексы в cases
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cases: make([]*TestCase, 0),
		byID:  make(map[string]int),
		byDir: make(map[string][]int),
	}
}

// Add registers a test case. A second case with the same ID replaces the first.
func (r *Registry) Add(tc *TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byID[tc.ID]; ok {
		r.cases[idx] = tc
		return
	}
	idx := len(r.cases)
	r.cases = append(r.cases, tc)
	r.byID[tc.ID] = idx
	dir := dirOf(tc.ID)
	r.byDir[dir] = append(r.byDir[dir], idx)
}

// Get returns the case with the given identity.
func (r *Registry) Get(id string) (*TestCase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.cases[idx], true
}

// All returns every case sorted by identity.
func (r *Registry) All() []*TestCase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]*TestCase(nil), r.cases...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InDirs returns the cases that live directly in any of dirs, sorted.
// With no dirs it returns every case.
func (r *Registry) InDirs(dirs []string) []*TestCase {
	if len(dirs) == 0 {
		return r.All()
	}
	r.mu.Lock()
	var out []*TestCase
	seen := make(map[string]bool)
	for _, d := range dirs {
		if seen[d] {
			continue
		}
		seen[d] = true
		for _, idx := range r.byDir[d] {
			out = append(out, r.cases[idx])
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dirs returns the directories that hold at least one case, sorted.
func (r *Registry) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byDir))
	for d := range r.byDir {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of cases.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cases)
}

func dirOf(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			return id[:i]
		}
	}
	return "."
}
