package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

// SaveRepo stores game states in the game_states table.  The version
// check and increment happen in a single conditional UPDATE so two
// devices saving at once cannot both win.
type SaveRepo struct {
	db *sql.DB
}

// NewSaveRepo returns a new SaveRepo bound to the given database.
func NewSaveRepo(db *sql.DB) *SaveRepo { return &SaveRepo{db: db} }

// Get loads the state of a user.
func (r *SaveRepo) Get(ctx context.Context, userID string) (model.GameState, error) {
	const q = `SELECT user_id, payload, version, updated_at FROM game_states WHERE user_id = ?`
	var (
		gs      model.GameState
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&gs.UserID, &payload, &gs.Version, &gs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GameState{}, ErrNotFound
	}
	if err != nil {
		return model.GameState{}, Wrap("get game state", err)
	}
	gs.Payload = json.RawMessage(payload)
	return gs, nil
}

// Create inserts the initial state of a user.
func (r *SaveRepo) Create(ctx context.Context, gs model.GameState) error {
	const q = `INSERT INTO game_states (user_id, payload, version, updated_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, gs.UserID, []byte(gs.Payload), gs.Version, gs.UpdatedAt.UTC())
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return Wrap("create game state", err)
}

// CompareAndSwap writes payload when the stored version equals expected.
func (r *SaveRepo) CompareAndSwap(ctx context.Context, userID string, expected int64, payload json.RawMessage, now time.Time) (model.GameState, error) {
	const q = `UPDATE game_states SET payload = ?, version = version + 1, updated_at = ? WHERE user_id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, q, []byte(payload), now.UTC(), userID, expected)
	if err != nil {
		return model.GameState{}, Wrap("save game state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.GameState{}, Wrap("save game state", err)
	}
	if n == 0 {
		// Either the user has no state or somebody else bumped the version.
		var current int64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM game_states WHERE user_id = ?`, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return model.GameState{}, ErrNotFound
		}
		if err != nil {
			return model.GameState{}, Wrap("save game state", err)
		}
		return model.GameState{}, ErrVersionConflict
	}
	return model.GameState{
		UserID:    userID,
		Payload:   payload,
		Version:   expected + 1,
		UpdatedAt: now.UTC(),
	}, nil
}
