package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// RoomRepository is a testify mock of repository.RoomRepository.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByPublicID(ctx context.Context, publicID int64) (*domain.Room, error) {
	args := m.Called(ctx, publicID)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) Insert(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) UpdateWithRevision(ctx context.Context, room *domain.Room, expected uint) error {
	args := m.Called(ctx, room, expected)
	return args.Error(0)
}

func (m *RoomRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RoomRepository) IsPublicIDTaken(ctx context.Context, publicID int64) (bool, error) {
	args := m.Called(ctx, publicID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) FindOpenIdleSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	args := m.Called(ctx, cutoff)
	if rooms, ok := args.Get(0).([]domain.Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
