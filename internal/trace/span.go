package trace

import (
	"sync/atomic"
	"time"
)

var (
	globalSeq   uint64
	globalSpans uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 {
	return atomic.AddUint64(&globalSpans, 1)
}

// Span provides begin/end tracking of one operation.
type Span struct {
	tracer  Tracer
	id      uint64
	scope   Scope
	kase    string
	name    string
	started time.Time
	extra   map[string]string
}

// Begin starts a new span and emits a SpanBegin event. testCase is empty for
// run-level spans.
func Begin(t Tracer, scope Scope, testCase, name string) *Span {
	if t == nil || !t.Level().ShouldEmit(KindSpanBegin, scope) {
		return &Span{tracer: Nop, started: time.Now()}
	}

	id := NextSpanID()
	now := time.Now()
	t.Emit(&Event{
		Time:   now,
		Kind:   KindSpanBegin,
		Scope:  scope,
		SpanID: id,
		Case:   testCase,
		Name:   name,
	})

	return &Span{
		tracer:  t,
		id:      id,
		scope:   scope,
		kase:    testCase,
		name:    name,
		started: now,
	}
}

// End emits a SpanEnd event and returns the duration. The duration is
// measured even when tracing is off.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	dur := time.Since(s.started)
	if s.tracer == nil || !s.tracer.Enabled() {
		return dur
	}

	s.tracer.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindSpanEnd,
		Scope:  s.scope,
		SpanID: s.id,
		Case:   s.kase,
		Name:   s.name,
		Detail: detail,
		Extra:  s.extra,
	})
	return dur
}

// WithExtra adds a key-value pair to the end event.
// Returns the span for method chaining.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, testCase, name, detail string) {
	if t == nil || !t.Level().ShouldEmit(KindPoint, scope) {
		return
	}
	t.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: scope, Case: testCase, Name: name, Detail: detail})
}

// Warn emits a warning; warnings pass every level except LevelOff.
func Warn(t Tracer, testCase, name, detail string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{Time: time.Now(), Kind: KindWarning, Scope: ScopeCase, Case: testCase, Name: name, Detail: detail})
}
