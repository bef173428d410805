package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardgame-backend/internal/middleware"
	"github.com/iliyamo/cardgame-backend/internal/service"
)

// AuthHandler bundles dependencies for login and logout.
type AuthHandler struct {
	Identity *service.IdentityService
	Sessions *service.SessionManager
	Saves    *service.SaveService
	Timeout  time.Duration
}

func NewAuthHandler(identity *service.IdentityService, sessions *service.SessionManager, saves *service.SaveService, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Identity: identity, Sessions: sessions, Saves: saves, Timeout: timeout}
}

// ----- DTOs -----

type loginReq struct {
	DeviceID string `json:"device_id"`
}

type loginResp struct {
	Success   bool            `json:"success"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Username  string          `json:"username"`
	ExpiresAt string          `json:"expires_at"`
	GameData  json.RawMessage `json:"game_data"`
	Version   int64           `json:"version"`
	Message   string          `json:"message"`
}

type logoutReq struct {
	SessionID string `json:"session_id"`
}

// Login: get-or-create the device's user, open a session and return the save.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()

	u, created, err := h.Identity.GetOrCreateUser(ctx, req.DeviceID)
	if err != nil {
		return err
	}
	middleware.SetUserID(c, u.ID)

	// First login seeds the default save; later logins return the stored one.
	state, err := h.Saves.Load(ctx, u.ID)
	if err != nil {
		return err
	}
	sess, err := h.Sessions.Create(ctx, u.ID)
	if err != nil {
		return err
	}

	msg := "Welcome back"
	if created {
		msg = "Account created"
	}
	return c.JSON(http.StatusOK, loginResp{
		Success:   true,
		UserID:    u.ID,
		SessionID: sess.Token,
		Username:  u.DisplayName(),
		ExpiresAt: timestamp(sess.ExpiresAt),
		GameData:  state.Payload,
		Version:   state.Version,
		Message:   msg,
	})
}

// Logout revokes the session.  Unknown tokens still succeed.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.SessionID == "" {
		return service.ErrMalformedRequest
	}
	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()
	if err := h.Sessions.Revoke(ctx, req.SessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
