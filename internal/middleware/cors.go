package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// CORSConfig controls the permissive CORS policy.
type CORSConfig struct {
	// EchoOrigin reflects the request Origin instead of "*".
	EchoOrigin bool
	MaxAge     int
}

// CORS sets the permissive cross-origin headers on every response and
// answers preflight (OPTIONS) requests with 204 for any path.  It must
// be installed with e.Pre so that it also covers unknown routes.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			origin := "*"
			if cfg.EchoOrigin {
				if o := c.Request().Header.Get(echo.HeaderOrigin); o != "" {
					origin = o
					h.Add(echo.HeaderVary, echo.HeaderOrigin)
				}
			}
			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			h.Set(echo.HeaderAccessControlAllowMethods, "*")
			h.Set(echo.HeaderAccessControlAllowHeaders, "*")
			h.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(maxAge))
			// Embedded web views reject responses carrying a restrictive CSP.
			h.Del(echo.HeaderContentSecurityPolicy)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
