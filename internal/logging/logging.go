// Package logging builds the zerolog root logger shared by the CLI and the
// HTTP server. Components derive their own loggers from it:
//
//	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
//	engineLogger := logger.With().Str("component", "recommend").Logger()
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a root logger writing to stderr. Format is "console" for
// human-readable development output or "json" for structured production logs.
func New(level, format string) zerolog.Logger {
	return NewWithOutput(level, format, os.Stderr)
}

// NewWithOutput creates a root logger writing to the given writer.
func NewWithOutput(level, format string, out io.Writer) zerolog.Logger {
	var w io.Writer = out
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level string to a zerolog level.
// Unknown values fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a disabled logger for tests and library callers that do not
// want log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
