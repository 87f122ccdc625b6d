// Package runtime provides panic containment helpers for goroutines and
// request handlers.
//
// A panicking worker must never take down the serving process: these helpers
// recover, log the panic value with its stack trace, and either keep running
// or crash depending on the chosen policy.
package runtime

import (
	"context"
	"runtime/debug"

	"github.com/Tar-2005/Workflowgenie/log"
)

// PanicPolicy determines what happens after a panic has been recovered and logged.
type PanicPolicy int

const (
	// KeepRunning recovers, logs and continues. Use for request handlers and
	// supervised workers where one failure must not affect the process.
	KeepRunning PanicPolicy = iota

	// CrashProcess recovers, logs and re-panics. Use for operations where
	// continuing after a panic would leave the process in an unknown state.
	CrashProcess
)

// RecoverAndLog recovers from a panic, logs it with the stack trace, and
// continues execution. Use in defer statements:
//
//	defer runtime.RecoverAndLog(ctx, logger, "component", "worker")
func RecoverAndLog(ctx context.Context, logger log.Logger, component, name string) {
	if r := recover(); r != nil {
		logPanic(ctx, logger, component, name, r, debug.Stack())
	}
}

// RecoverWithPolicy recovers from a panic and handles it according to the
// given policy. With CrashProcess the original panic value is re-raised after
// logging.
func RecoverWithPolicy(ctx context.Context, logger log.Logger, component, name string, policy PanicPolicy) {
	if r := recover(); r != nil {
		logPanic(ctx, logger, component, name, r, debug.Stack())

		if policy == CrashProcess {
			panic(r)
		}
	}
}

// HandlePanicValue processes a panic value that was already recovered by an
// external mechanism (e.g. the HTTP framework's recover middleware). It logs
// the value and stack without calling recover() itself.
func HandlePanicValue(ctx context.Context, logger log.Logger, panicValue any, component, name string) {
	if panicValue == nil {
		return
	}

	logPanic(ctx, logger, component, name, panicValue, debug.Stack())
}

// SafeGo launches fn in a goroutine protected by the given panic policy.
// The goroutine's panic never escapes to the process.
func SafeGo(ctx context.Context, logger log.Logger, component, name string, policy PanicPolicy, fn func(ctx context.Context)) {
	go func() {
		defer RecoverWithPolicy(ctx, logger, component, name, policy)

		fn(ctx)
	}()
}

func logPanic(ctx context.Context, logger log.Logger, component, name string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	logger.Log(ctx, log.LevelError, "panic recovered",
		log.String("component", component),
		log.String("source", name),
		log.Any("value", panicValue),
		log.String("stack_trace", string(stack)),
	)
}
