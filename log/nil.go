package log

import "context"

// nopLogger discards every log event. It exists so components can treat a
// missing logger as a no-op instead of guarding every call site against nil.
type nopLogger struct{}

// NewNop returns a Logger that discards all records.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Log(context.Context, Level, string, ...Field) {}

func (n nopLogger) With(...Field) Logger { return n }

func (nopLogger) Enabled(Level) bool { return false }

func (nopLogger) Sync(context.Context) error { return nil }
