// Package http provides shared HTTP helpers for the server surface.
package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the canonical JSON error schema rendered to clients.
type ErrorResponse struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// WriteError writes a structured error response using the ErrorResponse schema.
// This is the canonical way to write error responses and ensures consistency
// across all handlers.
func WriteError(c *fiber.Ctx, status int, title, message string) error {
	return JSONResponse(c, status, ErrorResponse{
		Code:    strconv.Itoa(status),
		Title:   title,
		Message: message,
	})
}

// BadRequestError writes a 400 Bad Request error response.
func BadRequestError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusBadRequest, title, message)
}

// UnauthorizedError writes a 401 Unauthorized error response.
func UnauthorizedError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusUnauthorized, title, message)
}

// NotFoundError writes a 404 Not Found error response.
func NotFoundError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusNotFound, title, message)
}

// InternalServerError writes a 500 Internal Server Error response.
// It always returns a generic message to avoid leaking internal details.
func InternalServerError(c *fiber.Ctx) error {
	return WriteError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

// ServiceUnavailableError writes a 503 Service Unavailable response with a
// custom title. The message is kept generic to avoid leaking internal details.
func ServiceUnavailableError(c *fiber.Ctx, title string) error {
	return WriteError(c, fiber.StatusServiceUnavailable, title, "service unavailable")
}
