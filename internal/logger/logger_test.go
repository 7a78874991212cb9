package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", &buf)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestComponentTag(t *testing.T) {
	var buf bytes.Buffer
	SetRoot(New("debug", &buf))
	defer SetRoot(New("info", &bytes.Buffer{}))

	l := Component("twelvedata")
	l.Debug().Msg("ping")
	if !strings.Contains(buf.String(), `"component":"twelvedata"`) {
		t.Fatalf("component field missing: %s", buf.String())
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("chatty", &buf)
	l.Debug().Msg("dbg")
	l.Info().Msg("inf")
	if strings.Contains(buf.String(), "dbg") || !strings.Contains(buf.String(), "inf") {
		t.Fatalf("expected info level, got %s", buf.String())
	}
}
