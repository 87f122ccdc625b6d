package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	defaultAccessControlAllowOrigin  = "*"
	defaultAccessControlAllowMethods = "POST, GET, OPTIONS, PUT, DELETE, PATCH"
	defaultAccessControlAllowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-Id"
)

// WithCORS is a middleware that enables CORS with the configured allow-lists.
// Empty arguments fall back to permissive defaults.
func WithCORS(allowOrigins, allowMethods, allowHeaders string) fiber.Handler {
	if allowOrigins == "" {
		allowOrigins = defaultAccessControlAllowOrigin
	}

	if allowMethods == "" {
		allowMethods = defaultAccessControlAllowMethods
	}

	if allowHeaders == "" {
		allowHeaders = defaultAccessControlAllowHeaders
	}

	return cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: allowMethods,
		AllowHeaders: allowHeaders,
	})
}
