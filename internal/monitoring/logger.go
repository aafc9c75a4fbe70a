// Package monitoring holds structured logging and Prometheus metrics
// shared across pusherd's components.
package monitoring

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures the process-wide logger.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// NewLogger builds a zerolog.Logger with timestamp, caller, and a
// fixed service field, matching the structured-log shape every
// component in pusherd logs through.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).With().
		Timestamp().
		Caller().
		Str("service", "pusherd").
		Logger()
}

// RecoverPanic is deferred at the top of every per-connection goroutine
// so a single malformed message or bug in a handler cannot crash the
// process; it logs the panic and lets the goroutine unwind normally.
func RecoverPanic(logger zerolog.Logger, goroutine string, fields map[string]any) {
	r := recover()
	if r == nil {
		return
	}
	event := logger.Error().
		Str("goroutine", goroutine).
		Interface("panic_value", r).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("goroutine panic recovered")
}
