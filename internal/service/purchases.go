package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/catalog"
	"github.com/iliyamo/cardgame-backend/internal/gamedata"
	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/queue"
	"github.com/iliyamo/cardgame-backend/internal/receipt"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// DefaultPlatform is assumed when a purchase names no platform.
const DefaultPlatform = "android"

// MaxTransactionIDLen matches the width of purchases.transaction_id.
const MaxTransactionIDLen = 191

// EventPublisher delivers purchase events to downstream consumers.
type EventPublisher interface {
	PublishPurchaseRecorded(ctx context.Context, ev queue.PurchaseRecordedEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishPurchaseRecorded(context.Context, queue.PurchaseRecordedEvent) error {
	return nil
}

// PurchaseRequest is a client's claim that it bought a product.
type PurchaseRequest struct {
	UserID        string
	TransactionID string
	ProductID     string
	Platform      string
	Receipt       string
}

// PurchaseResult is the ledger entry for a transaction.  Replayed is set
// when the transaction had already been recorded by an earlier call.
type PurchaseResult struct {
	Record   model.PurchaseRecord
	Replayed bool
}

// PurchaseLedger records purchases exactly once per transaction id and
// grants the product's content in the same atomic step.
type PurchaseLedger struct {
	repo     repository.PurchaseRepository
	saves    *SaveService
	catalog  *catalog.Catalog
	verifier receipt.Verifier
	events   EventPublisher
	log      *zap.Logger

	Now            func() time.Time
	PublishTimeout time.Duration
}

func NewPurchaseLedger(repo repository.PurchaseRepository, saves *SaveService, cat *catalog.Catalog, verifier receipt.Verifier, events EventPublisher, log *zap.Logger) *PurchaseLedger {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchaseLedger{
		repo:           repo,
		saves:          saves,
		catalog:        cat,
		verifier:       verifier,
		events:         events,
		log:            log,
		Now:            time.Now,
		PublishTimeout: 3 * time.Second,
	}
}

// Record applies a purchase.  A transaction id that is already in the
// ledger returns the stored record untouched, whatever the rest of the
// request says; the first record for a transaction is authoritative.
func (l *PurchaseLedger) Record(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
	if req.Platform == "" {
		req.Platform = DefaultPlatform
	}
	if req.TransactionID == "" || len(req.TransactionID) > MaxTransactionIDLen {
		return PurchaseResult{}, fmt.Errorf("%w: transaction_id required (max %d chars)", ErrMalformedRequest, MaxTransactionIDLen)
	}

	stored, err := l.repo.Get(ctx, req.TransactionID)
	if err == nil {
		return PurchaseResult{Record: stored, Replayed: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return PurchaseResult{}, fmt.Errorf("lookup purchase: %w", err)
	}

	if req.ProductID == "" {
		return PurchaseResult{}, fmt.Errorf("%w: product_id required", ErrMalformedRequest)
	}
	product, ok := l.catalog.Lookup(req.ProductID)
	if !ok {
		return PurchaseResult{}, fmt.Errorf("%w: %q", ErrUnknownProduct, req.ProductID)
	}

	claim := receipt.Claim{
		Platform:      req.Platform,
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
		Receipt:       req.Receipt,
	}
	if err := l.verifier.Verify(ctx, claim); err != nil {
		if errors.Is(err, receipt.ErrInvalid) {
			l.log.Warn("receipt rejected",
				zap.String("transaction_id", req.TransactionID),
				zap.String("platform", req.Platform),
				zap.Error(err))
			return PurchaseResult{}, err
		}
		return PurchaseResult{}, fmt.Errorf("verify receipt: %w", err)
	}

	// Grants need a document to edit.
	if _, err := l.saves.ensure(ctx, req.UserID); err != nil {
		return PurchaseResult{}, err
	}

	rec := model.PurchaseRecord{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		ProductID:     product.ID,
		Platform:      req.Platform,
		Verified:      true,
		RecordedAt:    l.Now().UTC(),
	}
	stored, created, err := l.repo.Apply(ctx, rec, func(payload json.RawMessage) (json.RawMessage, error) {
		return gamedata.Apply(payload, product.Grant)
	})
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("record purchase: %w", err)
	}
	if !created {
		// Lost a race against the same transaction id.
		return PurchaseResult{Record: stored, Replayed: true}, nil
	}

	l.log.Info("purchase recorded",
		zap.String("transaction_id", stored.TransactionID),
		zap.String("user_id", stored.UserID),
		zap.String("product_id", stored.ProductID),
		zap.String("platform", stored.Platform))
	l.publish(ctx, stored, product)
	return PurchaseResult{Record: stored}, nil
}

// History lists the purchases recorded for userID.
func (l *PurchaseLedger) History(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	recs, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return recs, nil
}

// publish emits the purchase event on a context detached from the
// request, so a client that hangs up does not drop the event.
func (l *PurchaseLedger) publish(ctx context.Context, rec model.PurchaseRecord, p model.Product) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.PublishTimeout)
	defer cancel()
	ev := queue.PurchaseRecordedEvent{
		TransactionID: rec.TransactionID,
		UserID:        rec.UserID,
		ProductID:     rec.ProductID,
		Platform:      rec.Platform,
		Gems:          p.Grant.Gems,
		UnlockCards:   p.Grant.UnlockCards,
		UnlockDecks:   p.Grant.UnlockDecks,
		Premium:       p.Grant.Premium,
		RecordedAt:    rec.RecordedAt.Format(time.RFC3339),
	}
	if err := l.events.PublishPurchaseRecorded(ctx, ev); err != nil {
		l.log.Warn("purchase event not published", zap.String("transaction_id", rec.TransactionID), zap.Error(err))
	}
}
