// Package obslog is the scheduler's logging seam: a thin owned wrapper
// around zerolog.Logger, following the same small-owned-struct pattern the
// teacher uses for Metrics in workerpool.go.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the scheduler-facing logging handle. Zero value logs nowhere.
type Logger struct {
	zl zerolog.Logger
}

// Discard returns a Logger that drops everything; the default for tests
// and for any Config that doesn't opt into console output.
func Discard() Logger {
	return Logger{zl: zerolog.New(io.Discard)}
}

// Console returns a Logger writing human-readable lines to stderr.
func Console() Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// With returns a Logger with a worker id attached to every subsequent
// event, mirroring the per-worker id fields threaded through §3's Worker
// struct.
func (l Logger) With(workerID int) Logger {
	return Logger{zl: l.zl.With().Int("worker", workerID).Logger()}
}

func (l Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}
func (l Logger) Fatal(err error, msg string) {
	l.zl.Error().Err(err).Bool("fatal", true).Msg(msg)
}

// Stack logs a stack-cache event (bind/free/trim) at debug level; noisy
// enough that it's the one call site allowed to fire per-parcel.
func (l Logger) Stack(event string, cached int) {
	l.zl.Debug().Str("event", event).Int("cached", cached).Msg("stack cache")
}
