package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// StateRepository is a testify mock of repository.StateRepository.
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) PublishRoomEvent(ctx context.Context, roomID string, event domain.RoomEvent) error {
	args := m.Called(ctx, roomID, event)
	return args.Error(0)
}

func (m *StateRepository) RememberHost(ctx context.Context, roomID, userID string, ttl time.Duration) error {
	args := m.Called(ctx, roomID, userID, ttl)
	return args.Error(0)
}

func (m *StateRepository) RememberedHost(ctx context.Context, roomID string) (string, error) {
	args := m.Called(ctx, roomID)
	return args.String(0), args.Error(1)
}

func (m *StateRepository) ForgetHost(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
