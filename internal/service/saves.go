package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/gamedata"
	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// SaveService keeps one versioned game document per user.
type SaveService struct {
	repo        repository.SaveRepository
	starterGems int64
	maxBytes    int
	log         *zap.Logger

	Now func() time.Time
}

// NewSaveService builds a SaveService.  maxBytes <= 0 disables the size
// check on saved documents.
func NewSaveService(repo repository.SaveRepository, starterGems int64, maxBytes int, log *zap.Logger) *SaveService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SaveService{repo: repo, starterGems: starterGems, maxBytes: maxBytes, log: log, Now: time.Now}
}

// Load returns the current document of userID.  A user without a
// document yet gets the starter document at version 0.
func (s *SaveService) Load(ctx context.Context, userID string) (model.GameState, error) {
	return s.ensure(ctx, userID)
}

// Save replaces the document when expected matches the stored version
// and returns the new state.  A stale version fails with
// ErrVersionConflict and leaves the stored document untouched.
func (s *SaveService) Save(ctx context.Context, userID string, expected int64, payload json.RawMessage) (model.GameState, error) {
	if expected < 0 {
		return model.GameState{}, fmt.Errorf("%w: version must not be negative", ErrMalformedRequest)
	}
	if err := gamedata.ValidateObject(payload); err != nil {
		return model.GameState{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if s.maxBytes > 0 && len(payload) > s.maxBytes {
		return model.GameState{}, fmt.Errorf("%w: game data exceeds %d bytes", ErrMalformedRequest, s.maxBytes)
	}

	gs, err := s.repo.CompareAndSwap(ctx, userID, expected, payload, s.Now())
	if errors.Is(err, repository.ErrNotFound) {
		if _, err = s.ensure(ctx, userID); err != nil {
			return model.GameState{}, err
		}
		gs, err = s.repo.CompareAndSwap(ctx, userID, expected, payload, s.Now())
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return model.GameState{}, fmt.Errorf("save at version %d: %w", expected, ErrVersionConflict)
	}
	if err != nil {
		return model.GameState{}, fmt.Errorf("save game state: %w", err)
	}
	return gs, nil
}

// ensure returns the stored state of userID, creating the starter
// document first if there is none.
func (s *SaveService) ensure(ctx context.Context, userID string) (model.GameState, error) {
	gs, err := s.repo.Get(ctx, userID)
	if err == nil {
		return gs, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.GameState{}, fmt.Errorf("load game state: %w", err)
	}
	gs = model.GameState{
		UserID:    userID,
		Payload:   gamedata.Defaults(s.starterGems),
		Version:   0,
		UpdatedAt: s.Now().UTC(),
	}
	err = s.repo.Create(ctx, gs)
	if errors.Is(err, repository.ErrConflict) {
		// created concurrently
		if gs, err = s.repo.Get(ctx, userID); err != nil {
			return model.GameState{}, fmt.Errorf("load game state: %w", err)
		}
		return gs, nil
	}
	if err != nil {
		return model.GameState{}, fmt.Errorf("create game state: %w", err)
	}
	s.log.Debug("starter game state created", zap.String("user_id", userID))
	return gs, nil
}
