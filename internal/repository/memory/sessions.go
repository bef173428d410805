package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// SessionStore is an in-memory repository.SessionRepository keyed by
// token hash, like the durable stores.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]model.Session)}
}

func (s *SessionStore) Put(ctx context.Context, sess model.Session) error {
	if err := ctx.Err(); err != nil {
		return repository.Wrap("store session", err)
	}
	key := repository.HashToken(sess.Token)
	sess.Token = ""
	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return model.Session{}, repository.Wrap("get session", err)
	}
	s.mu.RLock()
	sess, ok := s.sessions[repository.HashToken(token)]
	s.mu.RUnlock()
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	sess.Token = token
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return repository.Wrap("revoke session", err)
	}
	s.mu.Lock()
	delete(s.sessions, repository.HashToken(token))
	s.mu.Unlock()
	return nil
}

// DeleteExpired drops sessions whose expiry is before the given time.
func (s *SessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, repository.Wrap("purge sessions", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, k)
			n++
		}
	}
	return n, nil
}
