package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
	"voice-relay/entities"
	"voice-relay/repository"

	"github.com/google/uuid"
)

const deviceTokenTTL = 365 * 24 * time.Hour

type DeviceTokenService interface {
	Create(ctx context.Context, userId uuid.UUID, name string) (*entities.DeviceToken, error)
	List(ctx context.Context, userId uuid.UUID) ([]*entities.DeviceToken, error)
	Revoke(ctx context.Context, userId, id uuid.UUID) error
}

type deviceTokenService struct {
	repo repository.Repository
}

func NewDeviceTokenService(repo repository.Repository) DeviceTokenService {
	return &deviceTokenService{repo: repo}
}

func (s *deviceTokenService) Create(ctx context.Context, userId uuid.UUID, name string) (*entities.DeviceToken, error) {
	if name == "" {
		existing, err := s.repo.ListDeviceTokensByUser(ctx, userId)
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("Device %d", len(existing)+1)
	}

	token, err := newDeviceToken(userId, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDeviceToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *deviceTokenService) List(ctx context.Context, userId uuid.UUID) ([]*entities.DeviceToken, error) {
	return s.repo.ListDeviceTokensByUser(ctx, userId)
}

// Revoke is idempotent: revoking an unknown or already-revoked token
// succeeds.
func (s *deviceTokenService) Revoke(ctx context.Context, userId, id uuid.UUID) error {
	return s.repo.DeleteDeviceToken(ctx, userId, id)
}

// newDeviceToken builds an unsaved token entity: 32 random bytes hex
// encoded, expiring one year out.
func newDeviceToken(userId uuid.UUID, name string) (*entities.DeviceToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return &entities.DeviceToken{
		ID:        uuid.New(),
		UserId:    userId,
		Token:     hex.EncodeToString(raw),
		Name:      name,
		ExpiresAt: time.Now().Add(deviceTokenTTL),
	}, nil
}
