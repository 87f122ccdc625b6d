package http

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	cn "github.com/Tar-2005/Workflowgenie/constants"
	"github.com/gofiber/fiber/v2"
)

// BasicAuthFunc reports whether a username and password pair is authenticated.
type BasicAuthFunc func(username, password string) bool

// FixedBasicAuthFunc builds a BasicAuthFunc for a fixed username and password.
func FixedBasicAuthFunc(username, password string) BasicAuthFunc {
	return func(user, pass string) bool {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1

		return userOK && passOK
	}
}

// WithBasicAuth creates a basic authentication middleware.
func WithBasicAuth(f BasicAuthFunc, realm string) fiber.Handler {
	safeRealm := sanitizeBasicAuthRealm(realm)

	return func(c *fiber.Ctx) error {
		if f == nil {
			return unauthorizedResponse(c, safeRealm)
		}

		auth := c.Get(cn.Authorization)
		if auth == "" {
			return unauthorizedResponse(c, safeRealm)
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != cn.Basic {
			return unauthorizedResponse(c, safeRealm)
		}

		cred, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return unauthorizedResponse(c, safeRealm)
		}

		pair := strings.SplitN(string(cred), ":", 2)
		if len(pair) != 2 {
			return unauthorizedResponse(c, safeRealm)
		}

		if f(pair[0], pair[1]) {
			return c.Next()
		}

		return unauthorizedResponse(c, safeRealm)
	}
}

func sanitizeBasicAuthRealm(realm string) string {
	realm = strings.TrimSpace(realm)

	return strings.NewReplacer("\r", "", "\n", "", "\"", "").Replace(realm)
}

func unauthorizedResponse(c *fiber.Ctx, realm string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="`+realm+`"`)

	return UnauthorizedError(c, "unauthorized", "authentication required")
}
