package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

// UserRepository stores users keyed by device id.
type UserRepository interface {
	// GetByDeviceID returns ErrNotFound when the device was never seen.
	GetByDeviceID(ctx context.Context, deviceID string) (model.User, error)
	// Create inserts u; ErrConflict when the device id already has a user.
	Create(ctx context.Context, u model.User) error
}

// SessionRepository stores sessions keyed by token.
type SessionRepository interface {
	// Put stores a freshly issued session.
	Put(ctx context.Context, s model.Session) error
	// Get returns ErrNotFound for unknown or revoked tokens.  Expired
	// sessions may still be returned; the caller checks ExpiresAt.
	Get(ctx context.Context, token string) (model.Session, error)
	// Delete revokes token.  Unknown tokens are not an error.
	Delete(ctx context.Context, token string) error
}

// ExpiredSessionPurger is implemented by session stores that do not
// expire entries on their own.
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SaveRepository stores one game state per user.
type SaveRepository interface {
	// Get returns ErrNotFound when the user has no state yet.
	Get(ctx context.Context, userID string) (model.GameState, error)
	// Create inserts the initial state; ErrConflict if one exists.
	Create(ctx context.Context, gs model.GameState) error
	// CompareAndSwap replaces the payload only when the stored version
	// equals expected, bumping the version by one.  It returns
	// ErrVersionConflict on mismatch and ErrNotFound for unknown users.
	CompareAndSwap(ctx context.Context, userID string, expected int64, payload json.RawMessage, now time.Time) (model.GameState, error)
}

// GrantFunc rewrites a game state payload when a purchase is applied.
type GrantFunc func(payload json.RawMessage) (json.RawMessage, error)

// PurchaseRepository is the purchase ledger.
type PurchaseRepository interface {
	// Get returns ErrNotFound when the transaction was never recorded.
	Get(ctx context.Context, transactionID string) (model.PurchaseRecord, error)
	// Apply inserts rec and rewrites the owner's game state through grant
	// as one atomic step.  When rec.TransactionID is already recorded the
	// stored record is returned with created=false and grant is not run.
	Apply(ctx context.Context, rec model.PurchaseRecord, grant GrantFunc) (stored model.PurchaseRecord, created bool, err error)
	// ListByUser returns a user's records, oldest first.
	ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error)
}

// HashToken returns the SHA‑256 hex digest of a raw session token.
// Durable stores key sessions by this digest so a leaked table cannot
// be replayed as credentials.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
