// Package logging sets up the structured logger used across gridscope.
//
// The terminal belongs to the TUI, so records are written to a file inside the
// project's .gridscope/ directory rather than to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFile is the log file name used when none is configured.
const DefaultFile = "gridscope.log"

// Options controls logger construction.
type Options struct {
	// Dir is where DefaultFile is created when Path is empty.
	Dir string
	// Path overrides the log file location.
	Path  string
	Debug bool
}

// Open creates a file-backed logger. The returned closer must be called on exit.
func Open(opts Options) (zerolog.Logger, io.Closer, error) {
	path := opts.Path
	if path == "" {
		path = filepath.Join(opts.Dir, DefaultFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(f, opts.Debug), f, nil
}

// New builds a logger writing JSON records to w.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("app", "gridscope").
		Logger()
}

// Component derives a sub-logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Since adds the time elapsed between start and now to an event. Both come
// from the caller's clock so fake clocks log fake durations.
func Since(e *zerolog.Event, start, now time.Time) *zerolog.Event {
	return e.Dur("elapsed", now.Sub(start))
}
