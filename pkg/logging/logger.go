// Package logging provides structured logging for infer using zerolog.
// Console output is used on a terminal and JSON everywhere else, so a run
// piped into a file yields machine-readable diagnostics next to the ndjson
// sinks.
//
// A run scopes its logger through the context; every task adds its dataset,
// rule and PIT on top:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithPIT(logging.WithRule(logging.WithDataset(ctx, "geonames"), "geonames#0"), "tgn/7003632")
//	logging.FromContext(ctx).Warn().Err(err).Msg("Search failed")
package logging

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	logger := NewLoggerFromConfig(ConfigFromEnv())
	defaultLogger.Store(&logger)
}

// Default returns the process-wide logger, configured from LOG_* variables
// until SetDefault replaces it.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger.Store(&logger)
}

// New returns a JSON logger writing to w at the global level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(zerolog.GlobalLevel()).
		With().
		Timestamp().
		Logger()
}
