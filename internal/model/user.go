package model

import "time"

// User represents a player record as stored in the `users` table.  A
// user is created the first time a device logs in and is never deleted
// during normal operation.
//
// Fields:
//  ID        – opaque unique identifier handed to the client.
//  DeviceID  – unique device identifier; the first device seen wins.
//  CreatedAt – timestamp of creation.
type User struct {
	ID        string    // users.id
	DeviceID  string    // users.device_id
	CreatedAt time.Time // users.created_at
}

// DisplayName returns the generated player name shown by the client.
func (u User) DisplayName() string {
	id := u.ID
	if len(id) > 6 {
		id = id[:6]
	}
	return "Player_" + id
}
