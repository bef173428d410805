// Package redisstore keeps sessions in Redis.  Each session is a JSON
// value under "<prefix>:<sha256(token)>" whose key TTL is the session
// lifetime plus a retention window, so a token that just expired is
// still recognised as expired rather than unknown.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

type sessionValue struct {
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore is a Redis backed repository.SessionRepository.
type SessionStore struct {
	rdb       redis.Cmdable
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewSessionStore builds a store.  An empty prefix defaults to "sess".
func NewSessionStore(rdb redis.Cmdable, prefix string, retention time.Duration) *SessionStore {
	if prefix == "" {
		prefix = "sess"
	}
	if retention < 0 {
		retention = 0
	}
	return &SessionStore{rdb: rdb, prefix: prefix, retention: retention, now: time.Now}
}

func (s *SessionStore) key(token string) string {
	return s.prefix + ":" + repository.HashToken(token)
}

func (s *SessionStore) Put(ctx context.Context, sess model.Session) error {
	body, err := json.Marshal(sessionValue{UserID: sess.UserID, IssuedAt: sess.IssuedAt.UTC(), ExpiresAt: sess.ExpiresAt.UTC()})
	if err != nil {
		return repository.Wrap("store session", err)
	}
	ttl := sess.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		// Already past the retention window; nothing worth storing.
		return nil
	}
	return repository.Wrap("store session", s.rdb.Set(ctx, s.key(sess.Token), body, ttl).Err())
}

func (s *SessionStore) Get(ctx context.Context, token string) (model.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Session{}, repository.Wrap("get session", err)
	}
	var v sessionValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Session{}, repository.Wrap("decode session", err)
	}
	return model.Session{Token: token, UserID: v.UserID, IssuedAt: v.IssuedAt, ExpiresAt: v.ExpiresAt}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return repository.Wrap("revoke session", s.rdb.Del(ctx, s.key(token)).Err())
}
