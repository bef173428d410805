package memory

import (
	"context"
	"sync"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu       sync.RWMutex
	byDevice map[string]model.User
	locks    *KeyLock
}

func NewUserStore() *UserStore {
	return &UserStore{byDevice: make(map[string]model.User), locks: NewKeyLock()}
}

func (s *UserStore) GetByDeviceID(ctx context.Context, deviceID string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, repository.Wrap("get user", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byDevice[deviceID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return repository.Wrap("create user", err)
	}
	unlock, err := s.locks.Lock(ctx, u.DeviceID)
	if err != nil {
		return repository.Wrap("create user", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDevice[u.DeviceID]; ok {
		return repository.ErrConflict
	}
	s.byDevice[u.DeviceID] = u
	return nil
}
