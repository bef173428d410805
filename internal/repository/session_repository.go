package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

// SessionRepo persists sessions in MySQL (single 'token_hash' key column).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Put inserts a session row keyed by the token hash.
func (r *SessionRepo) Put(ctx context.Context, s model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (token_hash, user_id, issued_at, expires_at) VALUES (?,?,?,?)",
		HashToken(s.Token), s.UserID, s.IssuedAt.UTC(), s.ExpiresAt.UTC())
	return Wrap("store session", err)
}

// Get returns the session if it exists and was not revoked.
func (r *SessionRepo) Get(ctx context.Context, token string) (model.Session, error) {
	var (
		s         = model.Session{Token: token}
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, issued_at, expires_at, revoked_at FROM sessions WHERE token_hash=? LIMIT 1",
		HashToken(token)).Scan(&s.UserID, &s.IssuedAt, &s.ExpiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, Wrap("get session", err)
	}
	if revokedAt.Valid {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

// Delete marks a session as revoked.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		HashToken(token))
	return Wrap("revoke session", err)
}

// DeleteExpired removes sessions that expired before the given time.
func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", before.UTC())
	if err != nil {
		return 0, Wrap("purge sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Wrap("purge sessions", err)
	}
	return n, nil
}
