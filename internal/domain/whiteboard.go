package domain

import "time"

// Whiteboard is the versioned drawing document attached one-to-one to a
// room. Version increases on every mutation; clients use it only to drop
// stale or self-originated realtime echoes, never for conflict
// resolution.
type Whiteboard struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RoomID   string `gorm:"uniqueIndex;size:36;not null" json:"room_id"`
	Document string `gorm:"type:longtext" json:"document"`
	Version  uint   `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
