// Package logging wires the process-wide zerolog.Logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w. When pretty is true, output is
// rendered through zerolog.ConsoleWriter (for local/dev use); otherwise raw
// JSON lines are written, suitable for log aggregation.
func New(w io.Writer, levelName string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
}

// Nop returns a logger that discards everything; used by tests that don't
// want to assert on log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
