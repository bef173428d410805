package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardgame-backend/internal/middleware"
	"github.com/iliyamo/cardgame-backend/internal/service"
)

// DefaultStorageTimeout bounds storage calls when no timeout is configured.
const DefaultStorageTimeout = 5 * time.Second

// storageCtx derives the context used for storage calls of one request.
func storageCtx(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}

// bind decodes the JSON body into req; any decoding failure is a malformed request.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid JSON body", service.ErrMalformedRequest)
	}
	return nil
}

// authenticate resolves the session token to a user id and records the
// user on the echo context for logging and rate limiting.
func authenticate(ctx context.Context, c echo.Context, sessions *service.SessionManager, token string) (string, error) {
	uid, err := sessions.Validate(ctx, token)
	if err != nil {
		return "", err
	}
	middleware.SetUserID(c, uid)
	return uid, nil
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
