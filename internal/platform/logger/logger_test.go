package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"trace", LevelTrace},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)

	log.Debug("hidden")
	log.Trace("hidden too")
	log.Info("shown", "temperature", 350.0)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/trace output leaked at info level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "temperature=350") {
		t.Errorf("expected info record with attributes, got: %s", out)
	}
}

func TestTraceLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	log := New("trace", &buf)
	log.Trace("tick")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got: %s", buf.String())
	}
}

func TestEvent(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)
	log.Event("SCRAM", "operator", "manual scram")

	out := buf.String()
	for _, want := range []string{"type=SCRAM", "actor=operator", `details="manual scram"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %s", want, out)
		}
	}
}
