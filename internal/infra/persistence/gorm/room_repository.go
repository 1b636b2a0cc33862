package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

// GormRoomRepository is the GORM implementation of RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates the repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID looks a room up by its internal uuid.
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

// FindByPublicID looks a room up by its client-facing numeric id.
func (r *GormRoomRepository) FindByPublicID(ctx context.Context, publicID int64) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by public id %d: %w", publicID, err)
	}
	return &room, nil
}

// Insert creates a new room row.
func (r *GormRoomRepository) Insert(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: insert room (id: %s, public_id: %d): %w", room.ID, room.PublicID, err)
	}
	return nil
}

// UpdateWithRevision persists the mutable fields under a compare-and-swap
// on the revision column. Zero-value fields (closed status, cleared
// participants) must persist too, hence the explicit Select list.
func (r *GormRoomRepository) UpdateWithRevision(ctx context.Context, room *domain.Room, expected uint) error {
	room.Revision = expected + 1
	result := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND revision = ?", room.ID, expected).
		Select("participants", "is_open", "code", "prompt", "language", "revision", "updated_at").
		Updates(room)
	if result.Error != nil {
		room.Revision = expected
		return fmt.Errorf("gorm: update room %s (revision %d): %w", room.ID, expected, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either a concurrent writer bumped the revision or the row is
		// gone; callers re-fetch and find out which.
		room.Revision = expected
		return repository.ErrRevisionConflict
	}
	return nil
}

// Delete removes the row entirely.
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Room{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete room %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// IsPublicIDTaken reports whether a public id is already in use.
func (r *GormRoomRepository) IsPublicIDTaken(ctx context.Context, publicID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("public_id = ?", publicID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by public id %d: %w", publicID, err)
	}
	return count > 0, nil
}

// FindOpenIdleSince lists open rooms untouched since the cutoff.
func (r *GormRoomRepository) FindOpenIdleSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("is_open = ? AND updated_at < ?", true, cutoff).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find open idle rooms: %w", err)
	}
	return rooms, nil
}
