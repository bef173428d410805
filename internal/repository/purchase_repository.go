package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

// PurchaseRepo is the MySQL purchase ledger.  transaction_id is the
// primary key of the purchases table; inserting the record and
// rewriting the owner's game state share one transaction.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

const purchaseColumns = `transaction_id, user_id, product_id, platform, verified, recorded_at`

// Get returns the ledger entry for a transaction id.
func (r *PurchaseRepo) Get(ctx context.Context, transactionID string) (model.PurchaseRecord, error) {
	var rec model.PurchaseRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE transaction_id = ?`, transactionID,
	).Scan(&rec.TransactionID, &rec.UserID, &rec.ProductID, &rec.Platform, &rec.Verified, &rec.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PurchaseRecord{}, ErrNotFound
	}
	if err != nil {
		return model.PurchaseRecord{}, Wrap("get purchase", err)
	}
	return rec, nil
}

// Apply records a purchase and applies its grant atomically.  A duplicate
// transaction id is detected by the primary key: InnoDB makes the second
// inserter wait for the first transaction and then fail with 1062, at
// which point the stored record is returned instead.
func (r *PurchaseRepo) Apply(ctx context.Context, rec model.PurchaseRecord, grant GrantFunc) (model.PurchaseRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PurchaseRecord{}, false, Wrap("begin purchase", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchases (`+purchaseColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TransactionID, rec.UserID, rec.ProductID, rec.Platform, rec.Verified, rec.RecordedAt.UTC())
	if isDuplicateKey(err) {
		_ = tx.Rollback()
		committed = true // nothing left to roll back
		stored, gerr := r.Get(ctx, rec.TransactionID)
		if gerr != nil {
			return model.PurchaseRecord{}, false, gerr
		}
		return stored, false, nil
	}
	if err != nil {
		return model.PurchaseRecord{}, false, Wrap("insert purchase", err)
	}

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM game_states WHERE user_id = ? FOR UPDATE`, rec.UserID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PurchaseRecord{}, false, ErrNotFound
	}
	if err != nil {
		return model.PurchaseRecord{}, false, Wrap("lock game state", err)
	}
	next, err := grant(json.RawMessage(payload))
	if err != nil {
		return model.PurchaseRecord{}, false, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE game_states SET payload = ?, version = version + 1, updated_at = ? WHERE user_id = ?`,
		[]byte(next), rec.RecordedAt.UTC(), rec.UserID); err != nil {
		return model.PurchaseRecord{}, false, Wrap("apply grant", err)
	}
	if err := tx.Commit(); err != nil {
		return model.PurchaseRecord{}, false, Wrap("commit purchase", err)
	}
	committed = true
	rec.RecordedAt = rec.RecordedAt.UTC()
	return rec, true, nil
}

// ListByUser returns the purchases of a user ordered by recording time.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE user_id = ? ORDER BY recorded_at, transaction_id`, userID)
	if err != nil {
		return nil, Wrap("list purchases", err)
	}
	defer rows.Close()
	var out []model.PurchaseRecord
	for rows.Next() {
		var rec model.PurchaseRecord
		if err := rows.Scan(&rec.TransactionID, &rec.UserID, &rec.ProductID, &rec.Platform, &rec.Verified, &rec.RecordedAt); err != nil {
			return nil, Wrap("list purchases", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap("list purchases", err)
	}
	return out, nil
}
