package server

import (
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/Tar-2005/Workflowgenie/app"
	"github.com/Tar-2005/Workflowgenie/bootstrap"
	cn "github.com/Tar-2005/Workflowgenie/constants"
	libHTTP "github.com/Tar-2005/Workflowgenie/net/http"
	"github.com/Tar-2005/Workflowgenie/runtime"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// newRouter assembles the fiber application: panic containment, access
// logging, CORS, the bounded-concurrency gate, the operational routes, and
// the catch-all route that invokes the application callable.
func (s *Supervisor) newRouter() *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:               s.cfg.ServiceName,
		DisableStartupMessage: true,
		ErrorHandler:          libHTTP.FiberErrorHandler,
		// Idle keep-alive connections would otherwise survive Shutdown and
		// hold the drain until the grace period expires.
		IdleTimeout: time.Minute,
	})

	router.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, panicValue any) {
			runtime.HandlePanicValue(c.UserContext(), s.logger, panicValue, "server", "http_handler")
		},
	}))

	router.Use(libHTTP.WithLogging(s.logger))
	router.Use(libHTTP.WithCORS(s.cfg.CorsAllowOrigins, s.cfg.CorsAllowMethods, s.cfg.CorsAllowHeaders))
	router.Use(s.withWorkerGate())

	router.Get("/ping", libHTTP.Ping)
	router.Get("/version", libHTTP.Version(s.cfg.Version))
	router.Get("/health", libHTTP.Health(s.init))
	router.Get("/ready", libHTTP.Ready(s.init))

	debug := router.Group("/debug")
	if s.cfg.DebugAuthUsername != "" {
		debug.Use(libHTTP.WithBasicAuth(
			libHTTP.FixedBasicAuthFunc(s.cfg.DebugAuthUsername, s.cfg.DebugAuthPassword),
			s.cfg.ServiceName,
		))
	}

	debug.Get("/init", libHTTP.DebugInit(s.init))

	router.All("/*", s.invokeApplication)

	return router
}

// withWorkerGate caps the number of requests simultaneously in the handling
// phase at the configured worker-thread count. A waiter whose client goes
// away is released with 503 instead of holding a slot.
func (s *Supervisor) withWorkerGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		select {
		case s.workers <- struct{}{}:
		case <-c.Context().Done():
			return libHTTP.ServiceUnavailableError(c, "server_busy")
		}

		defer func() { <-s.workers }()

		return c.Next()
	}
}

// invokeApplication bridges one HTTP exchange to the injected application
// callable. While the background initializer has not completed, it answers
// 503 without touching the callable.
func (s *Supervisor) invokeApplication(c *fiber.Ctx) error {
	if s.init != nil && !s.init.Ready() {
		status := cn.StatusInitializing
		if s.init.Status() == bootstrap.StatusFailed {
			status = cn.StatusFailed
		}

		return libHTTP.ServiceUnavailableError(c, status)
	}

	request, err := normalizeRequest(c)
	if err != nil {
		return libHTTP.BadRequestError(c, "malformed_request", err.Error())
	}

	response, err := s.handler.Handle(c.UserContext(), request)
	if err != nil {
		return err
	}

	if response == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "empty application response")
	}

	return writeResponse(c, response)
}

// normalizeRequest copies the transport request into the callable's
// transport-agnostic form. Buffers are copied because fasthttp reuses them
// after the handler returns.
func normalizeRequest(c *fiber.Ctx) (*app.Request, error) {
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return nil, err
	}

	header := nethttp.Header{}
	for key, values := range c.GetReqHeaders() {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	var body []byte
	if len(c.Body()) > 0 {
		body = append([]byte(nil), c.Body()...)
	}

	return &app.Request{
		Method:     c.Method(),
		Path:       c.Path(),
		Query:      query,
		Header:     header,
		Body:       body,
		RemoteAddr: c.IP(),
	}, nil
}

func writeResponse(c *fiber.Ctx, response *app.Response) error {
	for key, values := range response.Header {
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}

	status := response.Status
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).Send(response.Body)
}
