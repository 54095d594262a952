package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var b bytes.Buffer
	logger := NewLogger(&b, LevelTrace)

	prev := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(prev) })

	Trace("batch", "index", 3)

	out := b.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("expected TRACE level, got %q", out)
	}

	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("expected source basename, got %q", out)
	}

	if !strings.Contains(out, "index=3") {
		t.Errorf("expected attrs, got %q", out)
	}
}

func TestTraceDisabled(t *testing.T) {
	var b bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(NewLogger(&b, slog.LevelDebug))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Trace("hidden")
	if b.Len() != 0 {
		t.Errorf("expected no output, got %q", b.String())
	}
}
