// Package http provides the HTTP surface helpers used by the server: the
// canonical JSON error schema, response writers, access logging, CORS and
// basic-auth middleware, and the operational handlers (ping, version, health,
// readiness, init diagnostics).
package http
