package runner

import "time"

// Stage describes one step of the per-case pipeline.
type Stage string

const (
	// StageCase covers the whole case; queued and final events use it.
	StageCase Stage = "case"
	// StageCompile is the first compiler invocation.
	StageCompile Stage = "compile"
	// StageAnnotations checks mode, error patterns and inline annotations.
	StageAnnotations Stage = "annotations"
	// StageSnapshot compares (or blesses) the .stderr fixture.
	StageSnapshot Stage = "snapshot"
	// StageFix runs the apply-and-recompile loop.
	StageFix Stage = "fix"
	// StageCoverage runs the instrumented program.
	StageCoverage Stage = "coverage"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the case is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the stage is running.
	StatusWorking Status = "working"
	// StatusDone indicates the stage finished without findings.
	StatusDone Status = "done"
	// StatusError indicates the stage recorded at least one failure.
	StatusError Status = "error"
	// StatusSkipped marks ignored and up-to-date cases.
	StatusSkipped Status = "skipped"
)

// Event reports progress for one case (or for the whole run when Case is empty).
type Event struct {
	Case    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use: every worker reports through the same sink.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
