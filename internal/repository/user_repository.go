package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

// UserRepo is the MySQL UserRepository.  device_id carries a unique
// index, which is what makes concurrent first logins from the same
// device resolve to one user.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByDeviceID fetches a user by device id.
func (r *UserRepo) GetByDeviceID(ctx context.Context, deviceID string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, device_id, created_at FROM users WHERE device_id=? LIMIT 1",
		strings.TrimSpace(deviceID)).Scan(&u.ID, &u.DeviceID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, Wrap("get user", err)
	}
	return u, nil
}

// Create inserts a user row.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, device_id, created_at) VALUES (?,?,?)",
		u.ID, u.DeviceID, u.CreatedAt.UTC())
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return Wrap("create user", err)
}
