package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesPlainTextToBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("session started", "subject_id", "user-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out, "session started") || !strings.Contains(out, "subject_id=user-1") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color codes written to a non-terminal")
	}
}
