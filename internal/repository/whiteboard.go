package repository

import (
	"context"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// WhiteboardRepository stores the one-per-room versioned drawing document.
type WhiteboardRepository interface {
	// FindByRoomID returns the room's whiteboard, ErrWhiteboardNotFound
	// when none was provisioned.
	FindByRoomID(ctx context.Context, roomID string) (*domain.Whiteboard, error)

	// Save creates or updates the whiteboard row.
	Save(ctx context.Context, wb *domain.Whiteboard) error

	// DeleteByRoomID removes the whiteboard together with its room.
	DeleteByRoomID(ctx context.Context, roomID string) error
}
