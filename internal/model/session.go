package model

import "time"

// Session models a server issued credential scoping a client to a user.
// Only a SHA‑256 hash of Token is ever persisted by durable stores; the
// raw value travels back to the client once, at login.
//
// Fields:
//  Token     – raw opaque token (never stored by durable backends).
//  UserID    – owner of the session.
//  IssuedAt  – when the session was created.
//  ExpiresAt – when the session stops being valid.
type Session struct {
	Token     string    // returned to the client as session_id
	UserID    string    // sessions.user_id
	IssuedAt  time.Time // sessions.issued_at
	ExpiresAt time.Time // sessions.expires_at
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
