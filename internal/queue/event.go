// Package queue defines message payloads exchanged over the message broker.
package queue

// PurchaseRecordedQueue is the durable queue purchase events go to.
const PurchaseRecordedQueue = "purchase.recorded"

// PurchaseRecordedEvent is published once per newly recorded purchase.
// Replayed purchases never produce an event.  It carries enough for
// downstream consumers to audit or notify without querying the database.
type PurchaseRecordedEvent struct {
	TransactionID string   `json:"transaction_id"`
	UserID        string   `json:"user_id"`
	ProductID     string   `json:"product_id"`
	Platform      string   `json:"platform"`
	Gems          int64    `json:"gems,omitempty"`
	UnlockCards   []string `json:"unlock_cards,omitempty"`
	UnlockDecks   []string `json:"unlock_decks,omitempty"`
	Premium       bool     `json:"premium,omitempty"`
	RecordedAt    string   `json:"recorded_at"`
}
