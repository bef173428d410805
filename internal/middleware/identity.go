package middleware

// identity.go holds the helpers shared across middleware files for
// reading the caller identity.  ResolveSession (or a handler, once it has
// validated a session) stores the user id under ContextUserID; before
// that point, or for anonymous routes, "anon" is returned.

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

// ContextUserID is the echo context key holding the authenticated user id.
const ContextUserID = "user_id"

// SetUserID records the authenticated user on the request context.
func SetUserID(c echo.Context, id string) { c.Set(ContextUserID, id) }

// userID extracts the user identifier stored on the context.
func userID(c echo.Context) string {
	if v, ok := c.Get(ContextUserID).(string); ok && v != "" {
		return v
	}
	return "anon"
}

// SessionResolver maps a session token to its user id.
type SessionResolver func(ctx context.Context, token string) (string, error)

// ResolveSession reads session_id from a JSON request body and, when it
// names a live session, records its user with SetUserID so later
// middleware can key on it.  The body is restored for the handler.
// Lookup failures are ignored here; the handler rejects the request.
func ResolveSession(resolve SessionResolver, timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodPost || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			body, err := io.ReadAll(req.Body)
			_ = req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					return he
				}
				return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
			}

			token := gjson.GetBytes(body, "session_id")
			if token.Type != gjson.String || token.Str == "" {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			uid, err := resolve(ctx, token.Str)
			cancel()
			if err == nil {
				SetUserID(c, uid)
			}
			return next(c)
		}
	}
}
