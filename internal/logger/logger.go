// Package logger builds the zerolog loggers used by long-running components.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	root   zerolog.Logger
	rootMu sync.RWMutex
)

func init() {
	root = New("info", os.Stderr)
}

// New returns a timestamped logger writing to w at the given level. Unknown
// levels fall back to info.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Console returns a human readable logger for interactive CLI sessions.
func Console(level string) zerolog.Logger {
	return New(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// SetRoot replaces the process-wide logger.
func SetRoot(l zerolog.Logger) {
	rootMu.Lock()
	root = l
	rootMu.Unlock()
}

// Component returns the root logger tagged with a component name.
func Component(name string) zerolog.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root.With().Str("component", name).Logger()
}
