package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/model"
	"github.com/iliyamo/cardgame-backend/internal/repository"
)

// MaxDeviceIDLen matches the width of users.device_id.
const MaxDeviceIDLen = 128

// IdentityService maps device identifiers to stable users.
type IdentityService struct {
	users repository.UserRepository
	ids   IDGenerator
	log   *zap.Logger

	Now func() time.Time
}

func NewIdentityService(users repository.UserRepository, ids IDGenerator, log *zap.Logger) *IdentityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityService{users: users, ids: ids, log: log, Now: time.Now}
}

// GetOrCreateUser returns the user owning deviceID, creating it on first
// sight.  When two first logins for the same device race, the unique
// device index lets exactly one insert win and the loser reads it back.
func (s *IdentityService) GetOrCreateUser(ctx context.Context, deviceID string) (model.User, bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || len(deviceID) > MaxDeviceIDLen {
		return model.User{}, false, fmt.Errorf("%w: device_id required (max %d chars)", ErrMalformedRequest, MaxDeviceIDLen)
	}

	u, err := s.users.GetByDeviceID(ctx, deviceID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, false, fmt.Errorf("lookup device: %w", err)
	}

	id, err := s.ids.NewUserID()
	if err != nil {
		return model.User{}, false, fmt.Errorf("generate user id: %w", err)
	}
	u = model.User{ID: id, DeviceID: deviceID, CreatedAt: s.Now().UTC()}
	err = s.users.Create(ctx, u)
	if errors.Is(err, repository.ErrConflict) {
		u, err = s.users.GetByDeviceID(ctx, deviceID)
		if err != nil {
			return model.User{}, false, fmt.Errorf("lookup device after conflict: %w", err)
		}
		return u, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", zap.String("user_id", u.ID))
	return u, true, nil
}
