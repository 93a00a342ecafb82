package observ

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Phase records the duration of one pipeline stage of a test case.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the stages of a single test case. Not safe for concurrent use;
// every worker owns its own timer.
type Timer struct {
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// PhaseReport is the serialisable form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the phases of one timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report returns the phases in start order and their total in milliseconds.
func (t *Timer) Report() Report {
	if t == nil || len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// Totals sums stage durations over many test cases. Safe for concurrent use.
type Totals struct {
	mu     sync.Mutex
	stages map[string]time.Duration
	counts map[string]int
	cases  int
}

// Add folds one case's timer into the totals.
func (s *Totals) Add(t *Timer) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stages == nil {
		s.stages = make(map[string]time.Duration)
		s.counts = make(map[string]int)
	}
	s.cases++
	for _, p := range t.phases {
		s.stages[p.Name] += p.Dur
		s.counts[p.Name]++
	}
}

// Summary renders the totals sorted by total time, longest first.
func (s *Totals) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.stages))
	var total time.Duration
	for name, d := range s.stages {
		names = append(names, name)
		total += d
	}
	sort.Slice(names, func(i, j int) bool {
		if s.stages[names[i]] != s.stages[names[j]] {
			return s.stages[names[i]] > s.stages[names[j]]
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "timings (%d cases):\n", s.cases)
	for _, name := range names {
		fmt.Fprintf(&b, "  %-12s %10.2f ms  %5dx\n", name, durationToMillis(s.stages[name]), s.counts[name])
	}
	fmt.Fprintf(&b, "  %-12s %10.2f ms\n", "total", durationToMillis(total))
	return b.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
