package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to w. Unknown levels fall back to info.
// When pretty is set the output is a human readable console format.
func New(level string, pretty bool, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() zerolog.Logger {
	return zerolog.Nop()
}
