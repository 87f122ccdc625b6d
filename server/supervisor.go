package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Tar-2005/Workflowgenie/app"
	"github.com/Tar-2005/Workflowgenie/bootstrap"
	"github.com/Tar-2005/Workflowgenie/config"
	"github.com/Tar-2005/Workflowgenie/log"
	"github.com/Tar-2005/Workflowgenie/opentelemetry"
	"github.com/Tar-2005/Workflowgenie/runtime"
	"github.com/gofiber/fiber/v2"
)

// ErrNilHandler indicates the supervisor was constructed without an
// application callable.
var ErrNilHandler = errors.New("no application handler configured")

// ErrAlreadyStarted indicates Start was called more than once.
var ErrAlreadyStarted = errors.New("supervisor already started")

// BindError reports that the listening socket could not be bound. It is the
// only error class that escapes the supervisor boundary; the process must
// exit non-zero on it.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// State is the supervisor lifecycle state.
type State int32

const (
	StateInit State = iota
	StateBinding
	StateRunning
	StateDraining
	StateStopped
	StateFailed
)

// String returns the string representation of a supervisor state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBinding:
		return "binding"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Supervisor owns the process serving lifecycle: it binds the listening
// socket, dispatches connections to a bounded set of workers sharing the
// injected application callable, and drains in-flight requests on shutdown.
type Supervisor struct {
	cfg        config.Config
	handler    app.Handler
	init       *bootstrap.Initializer
	telemetry  *opentelemetry.Telemetry
	logger     log.Logger
	httpServer *fiber.App
	workers    chan struct{}

	state         atomic.Int32
	started       chan struct{}
	startedOnce   sync.Once
	shutdownChan  <-chan struct{}
	shutdownOnce  sync.Once
	gracePeriod   time.Duration
	startupErrors chan error
}

// New creates a Supervisor for the given configuration and application
// callable. A nil logger is replaced with a no-op logger; initializer and
// telemetry are optional.
func New(
	cfg config.Config,
	handler app.Handler,
	init *bootstrap.Initializer,
	telemetry *opentelemetry.Telemetry,
	logger log.Logger,
) *Supervisor {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Supervisor{
		cfg:           cfg,
		handler:       handler,
		init:          init,
		telemetry:     telemetry,
		logger:        logger,
		workers:       make(chan struct{}, cfg.WorkerThreads),
		started:       make(chan struct{}),
		gracePeriod:   cfg.ShutdownGrace(),
		startupErrors: make(chan error, 1),
	}

	s.httpServer = s.newRouter()

	s.httpServer.Hooks().OnListen(func(_ fiber.ListenData) error {
		s.state.CompareAndSwap(int32(StateBinding), int32(StateRunning))

		s.startedOnce.Do(func() {
			close(s.started)
		})

		return nil
	})

	return s
}

// WithShutdownChannel configures a custom shutdown channel for the Supervisor.
// This allows tests to trigger shutdown deterministically instead of relying
// on OS signals.
func (s *Supervisor) WithShutdownChannel(ch <-chan struct{}) *Supervisor {
	s.shutdownChan = ch

	return s
}

// WithGracePeriod overrides the configured drain grace period.
func (s *Supervisor) WithGracePeriod(d time.Duration) *Supervisor {
	s.gracePeriod = d

	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Started returns a channel closed once the listening socket is bound and
// the supervisor accepts connections.
func (s *Supervisor) Started() <-chan struct{} {
	return s.started
}

// Start transitions the supervisor to Binding and launches the listener
// goroutine. A bind failure surfaces through Run (or through the startup
// error channel for callers driving the lifecycle manually); Start itself
// only fails on configuration errors.
func (s *Supervisor) Start() error {
	if s.handler == nil {
		return ErrNilHandler
	}

	if !s.state.CompareAndSwap(int32(StateInit), int32(StateBinding)) {
		return ErrAlreadyStarted
	}

	address := s.cfg.ListenAddress()

	runtime.SafeGo(
		context.Background(),
		s.logger,
		"server",
		"listen",
		runtime.KeepRunning,
		func(ctx context.Context) {
			s.logger.Log(ctx, log.LevelInfo, "starting HTTP server",
				log.String("address", address),
				log.Int("worker_threads", s.cfg.WorkerThreads),
			)

			if err := s.httpServer.Listen(address); err != nil {
				s.state.Store(int32(StateFailed))

				bindErr := &BindError{Addr: address, Err: err}
				s.logger.Log(ctx, log.LevelError, "HTTP server error", log.Err(bindErr))

				select {
				case s.startupErrors <- bindErr:
				default:
				}
			}
		},
	)

	return nil
}

// Run starts the supervisor and blocks until a termination signal arrives,
// the injected shutdown channel closes, or startup fails. It always executes
// the shutdown sequence before returning; the returned error is non-nil only
// for startup failures (clean signal-driven shutdown returns nil).
func (s *Supervisor) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	var startupErr error

	reason := "signal"

	if s.shutdownChan != nil {
		select {
		case <-s.shutdownChan:
		case startupErr = <-s.startupErrors:
			reason = "startup failure"
		}
	} else {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		select {
		case <-c:
			signal.Stop(c)
		case startupErr = <-s.startupErrors:
			reason = "startup failure"
		}
	}

	s.Shutdown(reason)

	return startupErr
}

// Shutdown executes the drain sequence: stop accepting connections, wait for
// in-flight requests bounded by the grace period, then release telemetry and
// flush the logger. It is idempotent; only the first call runs the sequence,
// and it never hangs past the grace period.
func (s *Supervisor) Shutdown(reason string) {
	s.shutdownOnce.Do(func() {
		ctx := context.Background()

		// Non-blocking read: shutdown may race a listener that never bound.
		select {
		case <-s.started:
		default:
			s.logger.Log(ctx, log.LevelInfo, "shutdown initiated before server was fully started")
		}

		failed := s.State() == StateFailed

		if !failed {
			s.state.Store(int32(StateDraining))
		}

		s.logger.Log(ctx, log.LevelInfo, "draining in-flight requests",
			log.String("reason", reason),
			log.String("grace_period", s.gracePeriod.String()),
		)

		if err := s.httpServer.ShutdownWithTimeout(s.gracePeriod); err != nil {
			s.logger.Log(ctx, log.LevelWarn, "drain grace period elapsed, cancelling stragglers",
				log.Err(err))
		}

		if s.telemetry != nil {
			s.logger.Log(ctx, log.LevelInfo, "shutting down telemetry")
			s.telemetry.ShutdownTelemetry()
		}

		if err := s.logger.Sync(ctx); err != nil {
			s.logger.Log(ctx, log.LevelError, "failed to sync logger", log.Err(err))
		}

		if !failed {
			s.state.Store(int32(StateStopped))
		}

		s.logger.Log(ctx, log.LevelInfo, "graceful shutdown completed")
	})
}
