package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tracer receives trace events from the runner and its workers.
type Tracer interface {
	// Emit records ev. Workers call it concurrently.
	Emit(ev *Event)
	Flush() error
	// Close flushes and closes a file output; std streams stay open.
	Close() error
	Level() Level
	// Enabled is Level() != LevelOff.
	Enabled() bool
}

// Config selects the level, format and destination of a tracer.
type Config struct {
	Level  Level
	Format Format // FormatAuto: NDJSON for *.ndjson and *.jsonl, text otherwise
	// Output wins over OutputPath when set.
	Output io.Writer
	// OutputPath is a file; "" and "-" mean stderr.
	OutputPath string
}

// New returns Nop for LevelOff and a stream tracer otherwise.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	w, err := cfg.writer()
	if err != nil {
		return nil, err
	}
	return NewStreamTracer(w, cfg.Level, cfg.format()), nil
}

func (cfg Config) format() Format {
	if cfg.Format != FormatAuto {
		return cfg.Format
	}
	switch filepath.Ext(cfg.OutputPath) {
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	}
	return FormatText
}

func (cfg Config) writer() (io.Writer, error) {
	switch {
	case cfg.Output != nil:
		return cfg.Output, nil
	case cfg.OutputPath == "" || cfg.OutputPath == "-":
		return os.Stderr, nil
	}
	// трасса часто пишется рядом с отчётами в build/
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

func isStdStream(w io.Writer) bool {
	return w == io.Writer(os.Stderr) || w == io.Writer(os.Stdout)
}
