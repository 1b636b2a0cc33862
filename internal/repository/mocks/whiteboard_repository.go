package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// WhiteboardRepository is a testify mock of repository.WhiteboardRepository.
type WhiteboardRepository struct {
	mock.Mock
}

func (m *WhiteboardRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Whiteboard, error) {
	args := m.Called(ctx, roomID)
	if wb, ok := args.Get(0).(*domain.Whiteboard); ok {
		return wb, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WhiteboardRepository) Save(ctx context.Context, wb *domain.Whiteboard) error {
	args := m.Called(ctx, wb)
	return args.Error(0)
}

func (m *WhiteboardRepository) DeleteByRoomID(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}
