// Package bootstrap runs heavy startup work in the background so the server
// can bind its port immediately.
//
// The initializer executes ordered steps in a supervised goroutine. Until all
// steps finish, application routes answer 503 while operational routes stay
// reachable. A failed step leaves the process alive: the failure and its
// stack are kept in a bounded journal for the init diagnostics endpoint.
package bootstrap

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tar-2005/Workflowgenie/log"
	"github.com/Tar-2005/Workflowgenie/runtime"
)

// Status describes the lifecycle of the background initialization.
type Status int32

const (
	StatusPending Status = iota
	StatusInProgress
	StatusReady
	StatusFailed
)

// String returns the string representation of a status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// journalCapacity bounds the in-memory init journal; Tail never returns more
// entries than this.
const journalCapacity = 200

// Step is one named unit of startup work. Steps run sequentially in
// registration order; the first failure aborts the remaining steps.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Initializer runs startup steps in the background and exposes their outcome.
type Initializer struct {
	logger log.Logger
	steps  []Step

	status atomic.Int32
	done   chan struct{}

	mu      sync.Mutex
	failure error
	journal []string
	started bool
}

// New creates an Initializer for the given steps. A nil logger is replaced
// with a no-op logger.
func New(logger log.Logger, steps ...Step) *Initializer {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Initializer{
		logger: logger,
		steps:  steps,
		done:   make(chan struct{}),
	}
}

// Start launches the background initialization. Subsequent calls are no-ops.
func (i *Initializer) Start(ctx context.Context) {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()

		return
	}

	i.started = true
	i.mu.Unlock()

	i.status.Store(int32(StatusInProgress))

	runtime.SafeGo(ctx, i.logger, "bootstrap", "initializer", runtime.KeepRunning, i.run)
}

func (i *Initializer) run(ctx context.Context) {
	defer close(i.done)

	i.logger.Log(ctx, log.LevelInfo, "background initialization started",
		log.Int("steps", len(i.steps)))

	for _, step := range i.steps {
		i.logger.Log(ctx, log.LevelInfo, "init step starting", log.String("step", step.Name))

		if err := i.runStep(ctx, step); err != nil {
			i.recordFailure(ctx, step.Name, err)

			return
		}

		i.logger.Log(ctx, log.LevelInfo, "init step finished", log.String("step", step.Name))
	}

	i.status.Store(int32(StatusReady))
	i.logger.Log(ctx, log.LevelInfo, "background initialization completed")
}

// runStep executes a single step, converting a panic into a step error so the
// remaining lifecycle accounting still runs.
func (i *Initializer) runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)

			i.appendJournal(fmt.Sprintf("panic in step %q: %v\n%s", step.Name, r, debug.Stack()))
		}
	}()

	return step.Run(ctx)
}

func (i *Initializer) recordFailure(ctx context.Context, stepName string, err error) {
	failure := fmt.Errorf("init step %q: %w", stepName, err)

	i.mu.Lock()
	i.failure = failure
	i.mu.Unlock()

	i.appendJournal(fmt.Sprintf("[%s] INIT EXCEPTION (%s): %v",
		time.Now().UTC().Format(time.RFC3339), stepName, err))

	i.status.Store(int32(StatusFailed))

	i.logger.Log(ctx, log.LevelError, "background initialization failed",
		log.String("step", stepName), log.Err(err))
}

func (i *Initializer) appendJournal(entry string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.journal = append(i.journal, entry)
	if len(i.journal) > journalCapacity {
		i.journal = i.journal[len(i.journal)-journalCapacity:]
	}
}

// Status returns the current initialization status.
func (i *Initializer) Status() Status {
	return Status(i.status.Load())
}

// Ready reports whether all steps completed successfully. An initializer with
// no steps becomes Ready as soon as Start runs.
func (i *Initializer) Ready() bool {
	return i.Status() == StatusReady
}

// Err returns the failure that stopped initialization, or nil.
func (i *Initializer) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.failure
}

// Done returns a channel closed when the background run finishes, whatever
// the outcome. Useful for tests and ordered shutdown.
func (i *Initializer) Done() <-chan struct{} {
	return i.done
}

// Tail returns up to n of the most recent journal entries.
func (i *Initializer) Tail(n int) []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if n <= 0 || len(i.journal) == 0 {
		return nil
	}

	if n > len(i.journal) {
		n = len(i.journal)
	}

	tail := make([]string, n)
	copy(tail, i.journal[len(i.journal)-n:])

	return tail
}
