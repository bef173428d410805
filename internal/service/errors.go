// Package service implements the game backend's four components:
// identity (device login), sessions, cloud saves and the purchase
// ledger.  Services speak in domain errors; the HTTP layer maps them to
// status codes.
package service

import (
	"errors"

	"github.com/iliyamo/cardgame-backend/internal/receipt"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

var (
	// ErrMalformedRequest reports missing or invalid input.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrSessionNotFound reports an unknown or revoked session token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired reports a session past its expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnknownProduct reports a product id missing from the catalog.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrVersionConflict reports a save presenting a stale version.
	ErrVersionConflict = repository.ErrVersionConflict

	// ErrReceiptInvalid reports a receipt that failed verification.
	ErrReceiptInvalid = receipt.ErrInvalid

	// ErrStorage and ErrStorageTimeout report persistence failures.
	ErrStorage        = repository.ErrStorage
	ErrStorageTimeout = repository.ErrStorageTimeout
)
