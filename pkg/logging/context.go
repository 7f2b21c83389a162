package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger stores logger in ctx. A nil logger stores Default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or Default.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithRunID tags the context logger with the pipeline run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withStr(ctx, "run_id", runID)
}

// WithDataset tags the context logger with a reference dataset.
func WithDataset(ctx context.Context, dataset string) context.Context {
	return withStr(ctx, "dataset", dataset)
}

// WithRule tags the context logger with a rule id ("<dataset>#<index>").
func WithRule(ctx context.Context, ruleID string) context.Context {
	return withStr(ctx, "rule", ruleID)
}

// WithPIT tags the context logger with a PIT identity.
func WithPIT(ctx context.Context, pitID string) context.Context {
	return withStr(ctx, "pit_id", pitID)
}

func withStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, &logger)
}
