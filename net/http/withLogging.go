package http

import (
	"strconv"
	"strings"
	"time"

	cn "github.com/Tar-2005/Workflowgenie/constants"
	"github.com/Tar-2005/Workflowgenie/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestInfo stores http access log data for one request.
type RequestInfo struct {
	RequestID     string
	Method        string
	URI           string
	Referer       string
	RemoteAddress string
	Status        int
	Date          time.Time
	Duration      time.Duration
	UserAgent     string
	Protocol      string
	Size          int
}

// NewRequestInfo creates an instance of RequestInfo from the inbound request.
func NewRequestInfo(c *fiber.Ctx) *RequestInfo {
	referer := "-"
	if c.Get("Referer") != "" {
		referer = c.Get("Referer")
	}

	return &RequestInfo{
		RequestID:     c.Get(cn.HeaderID),
		Method:        c.Method(),
		URI:           c.OriginalURL(),
		Referer:       referer,
		UserAgent:     c.Get(cn.HeaderUserAgent),
		RemoteAddress: c.IP(),
		Protocol:      c.Protocol(),
		Date:          time.Now().UTC(),
	}
}

// CLFString produces a log entry format similar to Common Log Format (CLF)
// Ref: https://httpd.apache.org/docs/trunk/logs.html#common
func (r *RequestInfo) CLFString() string {
	return strings.Join([]string{
		r.RemoteAddress,
		"-",
		r.Protocol,
		r.Date.Format("[02/Jan/2006:15:04:05 -0700]"),
		`"` + r.Method + " " + r.URI + `"`,
		strconv.Itoa(r.Status),
		strconv.Itoa(r.Size),
		r.Referer,
		r.UserAgent,
	}, " ")
}

// String implements fmt.Stringer using CLFString.
func (r *RequestInfo) String() string {
	return r.CLFString()
}

// finish records response status, size and total duration.
func (r *RequestInfo) finish(c *fiber.Ctx) {
	r.Duration = time.Now().UTC().Sub(r.Date)
	r.Status = c.Response().StatusCode()
	r.Size = len(c.Response().Body())
}

// WithLogging is an access-log middleware.
//
// It guarantees every request carries a request id header (generating a UUID
// when the client sent none), binds a request-scoped logger into the user
// context, and emits one CLF-style line per completed request.
func WithLogging(logger log.Logger) fiber.Handler {
	if logger == nil {
		logger = log.NewNop()
	}

	return func(c *fiber.Ctx) error {
		requestID := c.Get(cn.HeaderID)
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request().Header.Set(cn.HeaderID, requestID)
		}

		c.Set(cn.HeaderID, requestID)

		requestLogger := logger.With(log.String("request_id", requestID))
		c.SetUserContext(log.ContextWithLogger(c.UserContext(), requestLogger))

		info := NewRequestInfo(c)
		info.RequestID = requestID

		err := c.Next()

		info.finish(c)

		requestLogger.Log(c.UserContext(), log.LevelInfo, info.CLFString(),
			log.Int("status", info.Status),
			log.String("duration", info.Duration.String()),
		)

		return err
	}
}
