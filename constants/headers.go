package constants

// HTTP header names and auth scheme tokens used across the http helpers.
const (
	HeaderID        = "X-Request-Id"
	HeaderUserAgent = "User-Agent"
	Authorization   = "Authorization"
	Basic           = "Basic"
)
