package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/service"
)

// errorBody is the envelope written for every failed request.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
}

// Classify maps err to its HTTP status, machine code and client message.
func Classify(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, service.ErrMalformedRequest):
		return http.StatusBadRequest, "malformed_request", "Malformed request"
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized, "unauthorized", "Session expired"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "Invalid session"
	case errors.Is(err, service.ErrVersionConflict):
		return http.StatusConflict, "version_conflict", "Save version conflict"
	case errors.Is(err, service.ErrReceiptInvalid):
		return http.StatusPaymentRequired, "receipt_invalid", "Receipt verification failed"
	case errors.Is(err, service.ErrUnknownProduct):
		return http.StatusNotFound, "unknown_product", "Unknown product"
	case errors.Is(err, service.ErrStorageTimeout):
		return http.StatusServiceUnavailable, "storage_timeout", "Storage timed out"
	case errors.Is(err, service.ErrStorage):
		return http.StatusServiceUnavailable, "storage_error", "Storage unavailable"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request_canceled", "Request canceled"
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			return http.StatusNotFound, "not_found", "Endpoint not found"
		case http.StatusRequestEntityTooLarge:
			return http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large"
		}
		if he.Code >= 400 && he.Code < 500 {
			return he.Code, "malformed_request", http.StatusText(he.Code)
		}
	}
	return http.StatusInternalServerError, "internal_error", "Internal server error"
}

// ErrorHandler renders every error as the JSON error envelope.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, code, msg := Classify(err)
		body := errorBody{Error: msg, Code: code}
		if code == "not_found" {
			body.Path = c.Request().URL.Path
		}

		switch {
		case status == http.StatusInternalServerError:
			log.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		case status == http.StatusServiceUnavailable && code != "request_canceled":
			log.Warn("storage failure", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Debug("write error response", zap.Error(err))
		}
	}
}
