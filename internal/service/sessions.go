package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// DefaultSessionTTL is used when a non-positive TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager issues, validates and revokes session tokens.  Expiry
// is fixed at issue time; using a session never extends it.
type SessionManager struct {
	repo repository.SessionRepository
	ids  IDGenerator
	ttl  time.Duration
	log  *zap.Logger

	Now func() time.Time
}

func NewSessionManager(repo repository.SessionRepository, ids IDGenerator, ttl time.Duration, log *zap.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{repo: repo, ids: ids, ttl: ttl, log: log, Now: time.Now}
}

// TTL returns the lifetime of new sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Create issues a session for userID.
func (m *SessionManager) Create(ctx context.Context, userID string) (model.Session, error) {
	token, err := m.ids.NewToken()
	if err != nil {
		return model.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	now := m.Now().UTC()
	s := model.Session{Token: token, UserID: userID, IssuedAt: now, ExpiresAt: now.Add(m.ttl)}
	if err := m.repo.Put(ctx, s); err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Validate returns the owner of token.
func (m *SessionManager) Validate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrSessionNotFound
	}
	s, err := m.repo.Get(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("validate session: %w", err)
	}
	if s.Expired(m.Now()) {
		return "", ErrSessionExpired
	}
	return s.UserID, nil
}

// Revoke invalidates token.  Unknown or already revoked tokens are fine.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := m.repo.Delete(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// PurgeExpired removes expired sessions from stores that keep them
// around.  Stores that expire keys themselves are skipped.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := m.repo.(repository.ExpiredSessionPurger)
	if !ok {
		return 0, nil
	}
	return p.DeleteExpired(ctx, m.Now().UTC())
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, every time.Duration) {
	if _, ok := m.repo.(repository.ExpiredSessionPurger); !ok || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				m.log.Warn("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.log.Info("expired sessions purged", zap.Int64("count", n))
			}
		}
	}
}
