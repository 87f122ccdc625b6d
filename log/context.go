package log

import "context"

type contextKey string

// loggerContextKey is the context key under which request-scoped loggers travel.
const loggerContextKey = contextKey("workflowgenie_logger")

// ContextWithLogger returns a child context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts the request-scoped logger from ctx. It never returns
// nil: when no logger was attached, a no-op logger is returned so call sites
// can log unconditionally.
//
//nolint:ireturn
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerContextKey).(Logger); ok && logger != nil {
		return logger
	}

	return NewNop()
}
