package model

import "time"

// PurchaseRecord is a row of the purchase ledger.  TransactionID is the
// platform transaction identifier and the primary key: a transaction is
// recorded at most once, and the first record observed is authoritative.
type PurchaseRecord struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	Platform      string    `json:"platform"`
	Verified      bool      `json:"verified"`
	RecordedAt    time.Time `json:"recorded_at"`
}
