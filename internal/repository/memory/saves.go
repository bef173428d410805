package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// SaveStore is an in-memory repository.SaveRepository.
type SaveStore struct {
	mu     sync.RWMutex
	states map[string]model.GameState
	locks  *KeyLock
}

func NewSaveStore() *SaveStore {
	return &SaveStore{states: make(map[string]model.GameState), locks: NewKeyLock()}
}

func (s *SaveStore) Get(ctx context.Context, userID string) (model.GameState, error) {
	if err := ctx.Err(); err != nil {
		return model.GameState{}, repository.Wrap("get game state", err)
	}
	s.mu.RLock()
	gs, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok {
		return model.GameState{}, repository.ErrNotFound
	}
	return clone(gs), nil
}

func (s *SaveStore) Create(ctx context.Context, gs model.GameState) error {
	if err := ctx.Err(); err != nil {
		return repository.Wrap("create game state", err)
	}
	unlock, err := s.locks.Lock(ctx, gs.UserID)
	if err != nil {
		return repository.Wrap("create game state", err)
	}
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[gs.UserID]; ok {
		return repository.ErrConflict
	}
	s.states[gs.UserID] = clone(gs)
	return nil
}

func (s *SaveStore) CompareAndSwap(ctx context.Context, userID string, expected int64, payload json.RawMessage, now time.Time) (model.GameState, error) {
	if err := ctx.Err(); err != nil {
		return model.GameState{}, repository.Wrap("save game state", err)
	}
	var out model.GameState
	err := s.mutate(ctx, userID, func(gs model.GameState) (model.GameState, error) {
		if gs.Version != expected {
			return gs, repository.ErrVersionConflict
		}
		gs.Payload = payload
		gs.Version++
		gs.UpdatedAt = now.UTC()
		out = clone(gs)
		return gs, nil
	})
	return out, err
}

// mutate runs fn on the state of userID while holding the user's lock
// and stores the result when fn succeeds.
func (s *SaveStore) mutate(ctx context.Context, userID string, fn func(model.GameState) (model.GameState, error)) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return repository.Wrap("lock game state", err)
	}
	defer unlock()

	s.mu.RLock()
	gs, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}
	next, err := fn(clone(gs))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[userID] = clone(next)
	s.mu.Unlock()
	return nil
}

func clone(gs model.GameState) model.GameState {
	gs.Payload = append(json.RawMessage(nil), gs.Payload...)
	return gs
}
