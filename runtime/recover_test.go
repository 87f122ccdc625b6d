//go:build unit

package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tar-2005/Workflowgenie/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger captures log calls so tests can assert panic handling.
type testLogger struct {
	mu          sync.Mutex
	messages    []string
	panicLogged atomic.Bool
	logged      chan struct{}
}

func newTestLogger() *testLogger {
	return &testLogger{
		logged: make(chan struct{}, 1),
	}
}

func (l *testLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	l.panicLogged.Store(true)

	select {
	case l.logged <- struct{}{}:
	default:
	}
}

func (l *testLogger) With(_ ...log.Field) log.Logger { return l }
func (l *testLogger) Enabled(_ log.Level) bool       { return true }
func (l *testLogger) Sync(_ context.Context) error   { return nil }

func (l *testLogger) waitForLog(timeout time.Duration) bool {
	select {
	case <-l.logged:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestRecoverAndLog_ContainsPanic(t *testing.T) {
	logger := newTestLogger()

	func() {
		defer RecoverAndLog(context.Background(), logger, "test", "worker")

		panic("boom")
	}()

	assert.True(t, logger.panicLogged.Load())
}

func TestRecoverAndLog_NoPanicNoLog(t *testing.T) {
	logger := newTestLogger()

	func() {
		defer RecoverAndLog(context.Background(), logger, "test", "worker")
	}()

	assert.False(t, logger.panicLogged.Load())
}

func TestRecoverWithPolicy_KeepRunning(t *testing.T) {
	logger := newTestLogger()

	require.NotPanics(t, func() {
		defer RecoverWithPolicy(context.Background(), logger, "test", "worker", KeepRunning)

		panic("contained")
	})

	assert.True(t, logger.panicLogged.Load())
}

func TestRecoverWithPolicy_CrashProcess(t *testing.T) {
	logger := newTestLogger()

	require.Panics(t, func() {
		defer RecoverWithPolicy(context.Background(), logger, "test", "critical", CrashProcess)

		panic("fatal")
	})

	assert.True(t, logger.panicLogged.Load(), "panic must be logged before re-raising")
}

func TestHandlePanicValue_NilIsNoop(t *testing.T) {
	logger := newTestLogger()

	HandlePanicValue(context.Background(), logger, nil, "test", "handler")

	assert.False(t, logger.panicLogged.Load())
}

func TestHandlePanicValue_LogsValue(t *testing.T) {
	logger := newTestLogger()

	HandlePanicValue(context.Background(), logger, "recovered elsewhere", "test", "handler")

	assert.True(t, logger.panicLogged.Load())
}

func TestSafeGo_RecoversGoroutinePanic(t *testing.T) {
	logger := newTestLogger()

	SafeGo(context.Background(), logger, "test", "goroutine", KeepRunning, func(_ context.Context) {
		panic("goroutine boom")
	})

	require.True(t, logger.waitForLog(2*time.Second), "panic should be logged")
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), newTestLogger(), "test", "goroutine", KeepRunning, func(_ context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function was not executed")
	}
}

func TestLogPanic_NilLoggerIsSafe(t *testing.T) {
	require.NotPanics(t, func() {
		defer RecoverAndLog(context.Background(), nil, "test", "worker")

		panic("no logger")
	})
}
