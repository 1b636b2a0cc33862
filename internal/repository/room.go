package repository

import (
	"context"
	"time"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// RoomRepository defines storage for rooms. Rooms are addressable by two
// names: the internal uuid primary key and the numeric public id.
type RoomRepository interface {
	// FindByID looks a room up by its internal uuid.
	// Returns ErrRoomNotFound when it does not exist.
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// FindByPublicID looks a room up by its client-facing numeric id.
	// Returns ErrRoomNotFound when it does not exist.
	FindByPublicID(ctx context.Context, publicID int64) (*domain.Room, error)

	// Insert creates a new room row. A public-id collision surfaces as
	// ErrDuplicateEntry.
	Insert(ctx context.Context, room *domain.Room) error

	// UpdateWithRevision persists the room's mutable fields if and only
	// if the stored revision still equals expected (compare-and-swap).
	// On success the room's Revision is expected+1; a stale write
	// returns ErrRevisionConflict without touching the row.
	UpdateWithRevision(ctx context.Context, room *domain.Room, expected uint) error

	// Delete removes the row. Not part of the lifecycle protocol; the
	// normal close path keeps the row around.
	Delete(ctx context.Context, id string) error

	// IsPublicIDTaken reports whether a public id is already in use.
	IsPublicIDTaken(ctx context.Context, publicID int64) (bool, error)

	// FindOpenIdleSince lists open rooms whose last update predates the
	// cutoff. Used by the periodic sweep.
	FindOpenIdleSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error)
}
