package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardgame-backend/internal/service"
)

// GameHandler serves cloud save and load.
type GameHandler struct {
	Sessions *service.SessionManager
	Saves    *service.SaveService
	Timeout  time.Duration
}

func NewGameHandler(sessions *service.SessionManager, saves *service.SaveService, timeout time.Duration) *GameHandler {
	return &GameHandler{Sessions: sessions, Saves: saves, Timeout: timeout}
}

type saveReq struct {
	SessionID string          `json:"session_id"`
	Version   *int64          `json:"version"`
	GameData  json.RawMessage `json:"game_data"`
}

type loadReq struct {
	SessionID string `json:"session_id"`
}

// Save stores game_data if version matches the stored version.
func (h *GameHandler) Save(c echo.Context) error {
	var req saveReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()

	uid, err := authenticate(ctx, c, h.Sessions, req.SessionID)
	if err != nil {
		return err
	}
	if req.Version == nil {
		return fmt.Errorf("%w: version is required", service.ErrMalformedRequest)
	}
	state, err := h.Saves.Save(ctx, uid, *req.Version, req.GameData)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"new_version": state.Version,
		"saved_at":    timestamp(state.UpdatedAt),
		"message":     "Game saved",
	})
}

// Load returns the caller's current save.
func (h *GameHandler) Load(c echo.Context) error {
	var req loadReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := storageCtx(c, h.Timeout)
	defer cancel()

	uid, err := authenticate(ctx, c, h.Sessions, req.SessionID)
	if err != nil {
		return err
	}
	state, err := h.Saves.Load(ctx, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"game_data": state.Payload,
		"version":   state.Version,
		"loaded_at": timestamp(time.Now()),
	})
}
