package domain

import "time"

// Room is a collaborative interview session. The uuid primary key is
// internal only; clients address rooms by the numeric PublicID.
type Room struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	PublicID     int64           `gorm:"uniqueIndex;not null" json:"public_id"`
	CreatorID    string          `gorm:"index;size:191;not null" json:"creator_id"`
	Participants ParticipantList `gorm:"serializer:json" json:"participants"`
	IsOpen       bool            `gorm:"not null;default:true" json:"is_open"`
	Code         string          `gorm:"type:text" json:"code"`
	Prompt       string          `gorm:"type:text" json:"prompt"`
	Language     string          `gorm:"size:64" json:"language"`
	// Revision backs compare-and-swap updates; every persisted mutation
	// bumps it by one.
	Revision  uint      `gorm:"not null;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ParticipantList is the ordered set of encoded "userId:username" tokens.
// Insertion order is join order.
type ParticipantList []string

// HasParticipant reports whether any token in the list belongs to userID,
// comparing normalized identities ("id" and "id:anything" are the same user).
func (l ParticipantList) HasParticipant(userID string) bool {
	want := NormalizeID(userID)
	if want == "" {
		return false
	}
	for _, token := range l {
		if NormalizeID(token) == want {
			return true
		}
	}
	return false
}

// WithoutParticipant returns a copy of the list with every token matching
// userID removed.
func (l ParticipantList) WithoutParticipant(userID string) ParticipantList {
	want := NormalizeID(userID)
	out := make(ParticipantList, 0, len(l))
	for _, token := range l {
		if NormalizeID(token) != want {
			out = append(out, token)
		}
	}
	return out
}

// IsClosed reports whether the room reached its terminal state.
func (r *Room) IsClosed() bool { return !r.IsOpen }

// Close moves the room to its terminal state. Participants are always
// cleared in the same mutation; there is no reopen path.
func (r *Room) Close() {
	r.IsOpen = false
	r.Participants = nil
}
