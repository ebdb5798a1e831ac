// Package logging provides the console logger shared by the viewer and its
// background workers.
package logging

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var debugMode atomic.Bool

// New creates a console logger writing to w. A nil writer means stderr.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    !isTerminal(w),
	}).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// NewComponent creates a console logger tagged with a component name.
func NewComponent(w io.Writer, component string) zerolog.Logger {
	return New(w).With().Str("component", component).Logger()
}

// Nop returns a logger that discards everything. Tests use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// SetDebug switches the global level between Info and Debug.
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsDebug reports whether debug logging is enabled.
func IsDebug() bool {
	return debugMode.Load()
}
