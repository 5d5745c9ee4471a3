package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"INFO":     zerolog.InfoLevel,
		"bogus":    zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}

	for input, expected := range cases {
		if got := ParseLevel(input); got != expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", input, expected, got)
		}
	}
}

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", "json", &buf)

	logger.Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"message":"hello"`) {
		t.Errorf("expected JSON message field, got: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, `"time"`) {
		t.Errorf("expected timestamp field, got: %s", out)
	}
}

func TestNewWithOutput_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("warn", "json", &buf)

	logger.Info().Msg("should be filtered")
	logger.Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("info message should have been filtered, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("expected warn message, got: %s", out)
	}
}

func TestNewWithOutput_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("info", "console", &buf)

	logger.Info().Msg("console line")

	out := buf.String()
	if !strings.Contains(out, "console line") {
		t.Errorf("expected console output, got: %s", out)
	}
	// Console format is not JSON
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected non-JSON console output, got: %s", out)
	}
}

func TestNop(t *testing.T) {
	logger := Nop()

	// Must not panic and must emit nothing
	logger.Error().Msg("discarded")

	if logger.GetLevel() != zerolog.Disabled {
		t.Errorf("expected disabled level, got %v", logger.GetLevel())
	}
}
