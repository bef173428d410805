package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/service"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: x", service.ErrMalformedRequest), http.StatusBadRequest, "malformed_request"},
		{service.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized"},
		{service.ErrSessionExpired, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("save: %w", service.ErrVersionConflict), http.StatusConflict, "version_conflict"},
		{fmt.Errorf("%w: bad sig", service.ErrReceiptInvalid), http.StatusPaymentRequired, "receipt_invalid"},
		{service.ErrUnknownProduct, http.StatusNotFound, "unknown_product"},
		{fmt.Errorf("get: %w", service.ErrStorageTimeout), http.StatusServiceUnavailable, "storage_timeout"},
		{fmt.Errorf("get: %w: boom", service.ErrStorage), http.StatusServiceUnavailable, "storage_error"},
		{echo.ErrNotFound, http.StatusNotFound, "not_found"},
		{echo.ErrMethodNotAllowed, http.StatusNotFound, "not_found"},
		{echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{errors.New("whatever"), http.StatusInternalServerError, "internal_error"},
		{context.Canceled, http.StatusServiceUnavailable, "request_canceled"},
	}
	for _, tc := range cases {
		status, code, msg := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestErrorHandler_WritesEnvelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/whatever", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zap.NewNop())(errors.New("secret internals"), c)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error","code":"internal_error"}`, rec.Body.String())
}

func TestErrorHandler_NotFoundIncludesPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zap.NewNop())(echo.ErrNotFound, c)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Endpoint not found","code":"not_found","path":"/nowhere"}`, rec.Body.String())
}
