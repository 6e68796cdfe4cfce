// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger from the configured logging
// settings. level is one of debug, info, warn or error; unknown levels fall
// back to info. A nil output writes to stderr. pretty switches from JSON to
// human-readable console output.
func Setup(level string, pretty bool, output io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))

	if output == nil {
		output = os.Stderr
	}
	if pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, stale replacement, eviction)
//   - Expression compilation and pool borrow/return flow
//
// Info: Normal operation events
//   - Startup/shutdown
//   - Document store operations
//
// Warn: Warning conditions that don't prevent operation
//   - Release of a detached instance after its pool was evicted
//
// Error: Error conditions requiring attention
//   - Compilation failures
//   - Evaluation failures
//   - Configuration errors
//
// Context Fields:
//   - cache: cache name
//   - expression: expression text
//   - compile_ms: compilation duration
//   - idle / borrowed: pool occupancy
