package service

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// IDGenerator produces opaque identifiers.  Both kinds must come from a
// cryptographically secure source.
type IDGenerator interface {
	// NewUserID returns a fresh user identifier.
	NewUserID() (string, error)
	// NewToken returns a fresh session token with at least 128 bits of entropy.
	NewToken() (string, error)
}

// RandomIDs is the production IDGenerator: random (v4) UUIDs for users
// and 32 random bytes, hex encoded, for session tokens.
type RandomIDs struct{}

func (RandomIDs) NewUserID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (RandomIDs) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
