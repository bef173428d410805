package model

import (
	"encoding/json"
	"time"
)

// GameState is the cloud save of a single user.  Payload is an opaque
// JSON object owned by the client; the server only edits it when a
// purchase grants an entitlement.  Version grows by one on every write
// and writers must present the version they read.
type GameState struct {
	UserID    string          // game_states.user_id
	Payload   json.RawMessage // game_states.payload
	Version   int64           // game_states.version
	UpdatedAt time.Time       // game_states.updated_at
}
