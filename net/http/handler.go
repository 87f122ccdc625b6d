package http

import (
	"context"
	"errors"
	"time"

	cn "github.com/Tar-2005/Workflowgenie/constants"
	libLog "github.com/Tar-2005/Workflowgenie/log"
	"github.com/gofiber/fiber/v2"
)

// Ping returns HTTP Status 200 with response "pong".
func Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// Version returns a handler answering HTTP Status 200 with the running
// service version.
func Version(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return JSONResponse(c, fiber.StatusOK, fiber.Map{
			"version":     version,
			"requestDate": time.Now().UTC(),
		})
	}
}

// FiberErrorHandler is the canonical Fiber error handler.
//
// Framework errors keep their status code; any other handler failure is
// logged through the request-scoped logger and rendered as a generic server
// error, so a failing request never surfaces internals or drops the
// connection.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return WriteError(c, fe.Code, cn.DefaultErrorTitle, fe.Message)
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := libLog.FromContext(ctx)
	logger.Log(ctx, libLog.LevelError,
		"handler error",
		libLog.String("method", c.Method()),
		libLog.String("path", c.Path()),
		libLog.Err(err),
	)

	return InternalServerError(c)
}
