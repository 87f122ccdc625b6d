// Package app defines the application callable contract served by the
// supervisor.
//
// A Handler is stateless with respect to the transport: it receives a
// normalized request and returns a normalized response, and is shared
// read-only by every worker. The supervisor injects the handler at
// construction and never mutates it afterwards.
package app

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the normalized inbound request passed to the application callable.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// Response is the normalized response produced by the application callable.
// A zero Status is rendered as 200 OK.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Handler is the application callable invoked once per request.
//
// Implementations must be safe for concurrent use and must not retain req or
// its buffers after returning. Returning an error (or panicking) yields a
// generic server-error response to the client; it never crashes the worker.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// JSONContentType is the content type set by helpers that render JSON bodies.
const JSONContentType = "application/json; charset=utf-8"

// Welcome returns a minimal stateless callable that answers every request
// with service identification. The shipped binary uses it as the default
// application; real deployments inject their own Handler.
func Welcome(service, description string) Handler {
	body := []byte(`{"service":"` + service + `","description":"` + description + `"}`)

	return HandlerFunc(func(_ context.Context, _ *Request) (*Response, error) {
		header := http.Header{}
		header.Set("Content-Type", JSONContentType)

		return &Response{
			Status: http.StatusOK,
			Header: header,
			Body:   body,
		}, nil
	})
}
