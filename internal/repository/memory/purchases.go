package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// PurchaseStore is an in-memory repository.PurchaseRepository.  It
// applies grants to the SaveStore it was built with; the transaction
// lock is always taken before the user lock.
type PurchaseStore struct {
	mu    sync.RWMutex
	byTx  map[string]model.PurchaseRecord
	locks *KeyLock
	saves *SaveStore
}

func NewPurchaseStore(saves *SaveStore) *PurchaseStore {
	return &PurchaseStore{byTx: make(map[string]model.PurchaseRecord), locks: NewKeyLock(), saves: saves}
}

func (s *PurchaseStore) Get(ctx context.Context, transactionID string) (model.PurchaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.PurchaseRecord{}, repository.Wrap("get purchase", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byTx[transactionID]
	if !ok {
		return model.PurchaseRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func (s *PurchaseStore) Apply(ctx context.Context, rec model.PurchaseRecord, grant repository.GrantFunc) (model.PurchaseRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.PurchaseRecord{}, false, repository.Wrap("apply purchase", err)
	}
	unlock, err := s.locks.Lock(ctx, rec.TransactionID)
	if err != nil {
		return model.PurchaseRecord{}, false, repository.Wrap("apply purchase", err)
	}
	defer unlock()

	s.mu.RLock()
	stored, ok := s.byTx[rec.TransactionID]
	s.mu.RUnlock()
	if ok {
		return stored, false, nil
	}

	rec.RecordedAt = rec.RecordedAt.UTC()
	err = s.saves.mutate(ctx, rec.UserID, func(gs model.GameState) (model.GameState, error) {
		next, err := grant(gs.Payload)
		if err != nil {
			return gs, err
		}
		gs.Payload = next
		gs.Version++
		gs.UpdatedAt = rec.RecordedAt
		return gs, nil
	})
	if err != nil {
		return model.PurchaseRecord{}, false, err
	}

	s.mu.Lock()
	s.byTx[rec.TransactionID] = rec
	s.mu.Unlock()
	return rec, true, nil
}

func (s *PurchaseStore) ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Wrap("list purchases", err)
	}
	s.mu.RLock()
	var out []model.PurchaseRecord
	for _, rec := range s.byTx {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].TransactionID < out[j].TransactionID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}
