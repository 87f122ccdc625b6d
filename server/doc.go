// Package server implements the process supervisor: socket binding, bounded
// request concurrency, signal handling and graceful drain for the HTTP
// serving lifecycle.
//
// The supervisor moves through Init, Binding, Running, Draining and Stopped;
// a socket that cannot be bound moves it terminally to Failed and surfaces a
// BindError to the caller.
package server
