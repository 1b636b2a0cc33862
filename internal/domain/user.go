package domain

import "time"

// User is a registered account. Guests never get a row here; their
// identity exists only inside tokens and participant lists.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"uniqueIndex;size:191;not null" json:"username"`
	Password      string     `gorm:"size:191;not null" json:"-"`
	Email         string     `gorm:"uniqueIndex;size:191" json:"email"`
	LastLoginAt   *time.Time `json:"last_login_at"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
