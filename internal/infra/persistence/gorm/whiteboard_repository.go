package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

// GormWhiteboardRepository is the GORM implementation of WhiteboardRepository.
type GormWhiteboardRepository struct {
	db *gorm.DB
}

// NewGormWhiteboardRepository creates the repository.
func NewGormWhiteboardRepository(db *gorm.DB) *GormWhiteboardRepository {
	if db == nil {
		panic("database connection cannot be nil for GormWhiteboardRepository")
	}
	return &GormWhiteboardRepository{db: db}
}

// FindByRoomID returns the whiteboard attached to a room.
func (r *GormWhiteboardRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Whiteboard, error) {
	var wb domain.Whiteboard
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&wb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrWhiteboardNotFound
		}
		return nil, fmt.Errorf("gorm: find whiteboard by room id %s: %w", roomID, err)
	}
	return &wb, nil
}

// Save creates or updates the whiteboard row.
func (r *GormWhiteboardRepository) Save(ctx context.Context, wb *domain.Whiteboard) error {
	err := r.db.WithContext(ctx).Save(wb).Error
	if err != nil {
		return fmt.Errorf("gorm: save whiteboard (room_id: %s, version: %d): %w", wb.RoomID, wb.Version, err)
	}
	return nil
}

// DeleteByRoomID removes the whiteboard together with its room.
func (r *GormWhiteboardRepository) DeleteByRoomID(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.Whiteboard{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete whiteboard by room id %s: %w", roomID, err)
	}
	return nil
}
