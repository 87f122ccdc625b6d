//go:build unit

package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Tar-2005/Workflowgenie/app"
	"github.com/Tar-2005/Workflowgenie/bootstrap"
	"github.com/Tar-2005/Workflowgenie/config"
	"github.com/Tar-2005/Workflowgenie/log"
	libHTTP "github.com/Tar-2005/Workflowgenie/net/http"
	"github.com/Tar-2005/Workflowgenie/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger is a Logger that records messages and can return a Sync error.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
	syncErr  error
}

func (l *recordingLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) With(_ ...log.Field) log.Logger { return l }
func (l *recordingLogger) Enabled(_ log.Level) bool       { return true }
func (l *recordingLogger) Sync(_ context.Context) error   { return l.syncErr }

func (l *recordingLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := make([]string, len(l.messages))
	copy(cp, l.messages)

	return cp
}

// freePort reserves an ephemeral port and releases it for the supervisor.
func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return port
}

func testConfig(port int) config.Config {
	return config.Config{
		ServiceName:          "workflowgenie-test",
		Version:              "0.0.0-test",
		EnvName:              "local",
		BindAddress:          "127.0.0.1",
		Port:                 port,
		WorkerThreads:        4,
		ShutdownGraceSeconds: 5,
	}
}

func echoHandler() app.Handler {
	return app.HandlerFunc(func(_ context.Context, req *app.Request) (*app.Response, error) {
		return &app.Response{
			Status: http.StatusOK,
			Body:   []byte("echo:" + req.Path),
		}, nil
	})
}

// startSupervisor runs a supervisor in the background and returns a stop
// function (close the shutdown channel and wait for Run to return).
func startSupervisor(t *testing.T, s *server.Supervisor, shutdown chan struct{}) func() error {
	t.Helper()

	runResult := make(chan error, 1)

	go func() {
		runResult <- s.Run()
	}()

	select {
	case <-s.Started():
	case err := <-runResult:
		t.Fatalf("supervisor exited before starting: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not start in time")
	}

	var stopOnce sync.Once

	return func() error {
		stopOnce.Do(func() { close(shutdown) })

		select {
		case err := <-runResult:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("supervisor did not stop in time")

			return nil
		}
	}
}

// testClient builds a client that closes its connections after each request,
// so supervisor shutdown never waits on idle keep-alive connections.
func testClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	client := testClient(5 * time.Second)

	resp, err := client.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestSupervisor_ServesConfiguredPortOnly(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	s := server.New(testConfig(port), echoHandler(), nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	assert.Equal(t, server.StateRunning, s.State())

	status, body := httpGet(t, fmt.Sprintf("http://127.0.0.1:%d/anything", port))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo:/anything", body)

	// The neighbouring port must not be listening.
	_, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port+1), 500*time.Millisecond)
	require.Error(t, err)

	require.NoError(t, stop())
	assert.Equal(t, server.StateStopped, s.State())
}

func TestSupervisor_OperationalRoutes(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	s := server.New(testConfig(port), echoHandler(), nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	status, body := httpGet(t, base+"/ping")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body)

	status, body = httpGet(t, base+"/version")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "0.0.0-test")

	status, _ = httpGet(t, base+"/health")
	assert.Equal(t, http.StatusOK, status)
}

func TestSupervisor_BindFailure(t *testing.T) {
	port := freePort(t)

	// Occupy the port so binding fails.
	blocker, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)

	defer blocker.Close()

	s := server.New(testConfig(port), echoHandler(), nil, nil, &recordingLogger{})

	err = s.Run()

	require.Error(t, err)

	var bindErr *server.BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Contains(t, bindErr.Addr, fmt.Sprintf("%d", port))
	assert.Equal(t, server.StateFailed, s.State())
}

func TestSupervisor_StartTwice(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	s := server.New(testConfig(port), echoHandler(), nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	assert.ErrorIs(t, s.Start(), server.ErrAlreadyStarted)
}

func TestSupervisor_NilHandler(t *testing.T) {
	s := server.New(testConfig(freePort(t)), nil, nil, nil, nil)

	assert.ErrorIs(t, s.Run(), server.ErrNilHandler)
}

func TestSupervisor_ShutdownIsIdempotent(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})
	logger := &recordingLogger{}

	s := server.New(testConfig(port), echoHandler(), nil, nil, logger).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	s.Shutdown("first")
	s.Shutdown("second")
	s.Shutdown("third")

	require.NoError(t, stop())
	assert.Equal(t, server.StateStopped, s.State())

	completed := 0

	for _, msg := range logger.getMessages() {
		if msg == "graceful shutdown completed" {
			completed++
		}
	}

	assert.Equal(t, 1, completed, "shutdown sequence must run exactly once")
}

func TestSupervisor_PanicIsolation(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	handler := app.HandlerFunc(func(_ context.Context, req *app.Request) (*app.Response, error) {
		if req.Path == "/boom" {
			panic("handler exploded")
		}

		return &app.Response{Status: http.StatusOK, Body: []byte("fine")}, nil
	})

	s := server.New(testConfig(port), handler, nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	// The panicking request still yields a well-formed error response.
	status, body := httpGet(t, base+"/boom")
	assert.Equal(t, http.StatusInternalServerError, status)

	var errResp libHTTP.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &errResp))
	assert.NotContains(t, errResp.Message, "exploded")

	// A subsequent unrelated request on a new connection succeeds.
	status, body = httpGet(t, base+"/ok")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "fine", body)
}

func TestSupervisor_HandlerErrorIsContained(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	handler := app.HandlerFunc(func(_ context.Context, _ *app.Request) (*app.Response, error) {
		return nil, errors.New("application refused")
	})

	s := server.New(testConfig(port), handler, nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	status, body := httpGet(t, fmt.Sprintf("http://127.0.0.1:%d/x", port))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "internal server error")
	assert.NotContains(t, body, "application refused")
}

func TestSupervisor_DrainAllowsInFlightRequests(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	entered := make(chan struct{})
	release := make(chan struct{})

	handler := app.HandlerFunc(func(_ context.Context, _ *app.Request) (*app.Response, error) {
		close(entered)
		<-release

		return &app.Response{Status: http.StatusOK, Body: []byte("drained")}, nil
	})

	s := server.New(testConfig(port), handler, nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	type result struct {
		status int
		body   string
		err    error
	}

	resultCh := make(chan result, 1)

	go func() {
		client := testClient(10 * time.Second)

		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/slow", port))
		if err != nil {
			resultCh <- result{err: err}

			return
		}

		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		resultCh <- result{status: resp.StatusCode, body: string(body), err: err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	// Trigger shutdown while the request is in flight, then let it finish.
	close(shutdown)

	time.Sleep(100 * time.Millisecond)
	close(release)

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.status)
		assert.Equal(t, "drained", r.body, "in-flight request must complete during drain")
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight request never completed")
	}

	require.NoError(t, stop())
	assert.Equal(t, server.StateStopped, s.State())
}

func TestSupervisor_WorkerGateBoundsConcurrency(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	var (
		mu          sync.Mutex
		inFlight    int
		maxInFlight int
	)

	handler := app.HandlerFunc(func(_ context.Context, _ *app.Request) (*app.Response, error) {
		mu.Lock()
		inFlight++

		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		return &app.Response{Status: http.StatusOK}, nil
	})

	cfg := testConfig(port)
	cfg.WorkerThreads = 2

	s := server.New(cfg, handler, nil, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			client := testClient(10 * time.Second)

			resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/work", port))
			if err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}()
	}

	wg.Wait()

	mu.Lock()
	observed := maxInFlight
	mu.Unlock()

	assert.LessOrEqual(t, observed, 2, "handling concurrency must not exceed the worker count")
	assert.Greater(t, observed, 0)
}

func TestSupervisor_GatesApplicationOnInitializer(t *testing.T) {
	port := freePort(t)
	shutdown := make(chan struct{})

	initFailure := errors.New("workflow build failed")
	init := bootstrap.New(nil, bootstrap.Step{
		Name: "workflow",
		Run:  func(_ context.Context) error { return initFailure },
	})
	init.Start(context.Background())

	select {
	case <-init.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("initializer did not finish")
	}

	s := server.New(testConfig(port), echoHandler(), init, nil, &recordingLogger{}).
		WithShutdownChannel(shutdown)
	stop := startSupervisor(t, s, shutdown)

	defer func() { require.NoError(t, stop()) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	// Application routes answer 503 after a failed init.
	status, body := httpGet(t, base+"/tasks")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "failed")

	// Operational routes stay reachable.
	status, _ = httpGet(t, base+"/ping")
	assert.Equal(t, http.StatusOK, status)

	// The diagnostics endpoint exposes the init journal.
	status, body = httpGet(t, base+"/debug/init")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "workflow")
}

func TestBindError_Unwrap(t *testing.T) {
	cause := errors.New("address already in use")
	err := &server.BindError{Addr: "127.0.0.1:8080", Err: cause}

	assert.Contains(t, err.Error(), "127.0.0.1:8080")
	assert.ErrorIs(t, err, cause)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    server.State
		expected string
	}{
		{server.StateInit, "init"},
		{server.StateBinding, "binding"},
		{server.StateRunning, "running"},
		{server.StateDraining, "draining"},
		{server.StateStopped, "stopped"},
		{server.StateFailed, "failed"},
		{server.State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}
