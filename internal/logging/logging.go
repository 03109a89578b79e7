// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stderr and sets the global level.
// Human-friendly console output is used unless json is set.
func New(level string, json bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if !json {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	return NewWithWriter(w, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back
// to info.
func ParseLevel(level string) zerolog.Level {
	if lvl, ok := levels[normalize(level)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// KnownLevel reports whether ParseLevel recognises level.
func KnownLevel(level string) bool {
	_, ok := levels[normalize(level)]
	return ok
}

func normalize(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}
