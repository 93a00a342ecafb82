package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		level Level
		kind  Kind
		scope Scope
		want  bool
	}{
		{LevelOff, KindWarning, ScopeCase, false},
		{LevelError, KindWarning, ScopeCase, true},
		{LevelError, KindSpanBegin, ScopeRun, false},
		{LevelPhase, KindSpanBegin, ScopeStage, true},
		{LevelPhase, KindPoint, ScopeDetail, false},
		{LevelDetail, KindPoint, ScopeDetail, true},
		{LevelDebug, KindPoint, ScopeDetail, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.kind, tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s, %s) = %v, want %v", tc.level, tc.kind, tc.scope, got, tc.want)
		}
	}
}

func TestStreamTextOutput(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)

	span := Begin(tr, ScopeStage, "ui/a.rs", "invoke")
	Point(tr, ScopeDetail, "ui/a.rs", "argv", "hidden at phase level")
	Warn(tr, "ui/a.rs", "normalize", "residue /home/ci")
	span.WithExtra("exit", "1").End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "\u2192 ui/a.rs invoke") {
		t.Fatalf("unexpected begin line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "! ui/a.rs normalize (residue /home/ci)") {
		t.Fatalf("unexpected warning line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "\u2190 ui/a.rs invoke (ok) {exit=1}") {
		t.Fatalf("unexpected end line %q", lines[2])
	}
}

func TestStreamNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDebug, Format: FormatNDJSON, Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	Point(tr, ScopeDetail, "ui/a.rs", "fix:round", "1")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not json: %v: %q", err, buf.String())
	}
	if got["case"] != "ui/a.rs" || got["name"] != "fix:round" || got["scope"] != "detail" {
		t.Fatalf("unexpected event %v", got)
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatal("empty context must carry the nop tracer")
	}
	var buf bytes.Buffer
	ctx := WithTracer(context.Background(), NewStreamTracer(&buf, LevelError, FormatText))
	if FromContext(ctx).Level() != LevelError {
		t.Fatal("tracer not propagated")
	}
}

func TestOffLevelIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if tr != Nop {
		t.Fatal("expected the nop tracer")
	}
	if d := Begin(tr, ScopeCase, "x", "y").End(""); d < 0 {
		t.Fatal("negative duration")
	}
}
