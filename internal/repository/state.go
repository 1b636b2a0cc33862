package repository

import (
	"context"
	"time"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// StateRepository covers the volatile, redis-backed side of a room: the
// realtime change feed and the remembered-host hint. Subscription is not
// part of this interface; the hub consumes the feed directly.
type StateRepository interface {
	// PublishRoomEvent pushes an event onto the room's change-feed
	// channel. At-least-once; subscribers de-duplicate by revision.
	PublishRoomEvent(ctx context.Context, roomID string, event domain.RoomEvent) error

	// RememberHost stores the creator identity observed for a room, as a
	// low-trust auxiliary signal for host detection when the client lost
	// its own id. Expires after ttl.
	RememberHost(ctx context.Context, roomID, userID string, ttl time.Duration) error

	// RememberedHost returns the stored hint, or "" when none exists.
	RememberedHost(ctx context.Context, roomID string) (string, error)

	// ForgetHost drops the hint; best-effort cleanup on close.
	ForgetHost(ctx context.Context, roomID string) error

	// CheckRateLimit increments the counter behind key and reports
	// whether the request budget for the window is exhausted.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
