package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

func TestEncodeDecodeParticipant(t *testing.T) {
	token := domain.EncodeParticipant("user-42", "Alice")
	assert.Equal(t, "user-42:Alice", token)

	p := domain.DecodeParticipant(token)
	assert.Equal(t, "user-42", p.UserID)
	assert.Equal(t, "Alice", p.Username)
}

func TestDecodeParticipant_ColonsInUsername(t *testing.T) {
	// Only the first colon separates; the rest belongs to the username.
	p := domain.DecodeParticipant("user-1:who:am:i")
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "who:am:i", p.Username)
}

func TestDecodeParticipant_BareID(t *testing.T) {
	p := domain.DecodeParticipant("guest-ab12")
	assert.Equal(t, "guest-ab12", p.UserID)
	assert.Empty(t, p.Username)
}

func TestDecodeParticipant_EmptyUsername(t *testing.T) {
	p := domain.DecodeParticipant("user-1:")
	assert.Equal(t, "user-1", p.UserID)
	assert.Empty(t, p.Username)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "user-1", domain.NormalizeID("user-1"))
	assert.Equal(t, "user-1", domain.NormalizeID("user-1:Alice"))
	assert.Equal(t, "user-1", domain.NormalizeID("user-1:who:am:i"))
	assert.Equal(t, "user-1", domain.NormalizeID("  user-1:Alice"))
	assert.Equal(t, "", domain.NormalizeID(""))
	assert.Equal(t, "", domain.NormalizeID(":Alice"))
}

func TestParticipantList_HasParticipant(t *testing.T) {
	list := domain.ParticipantList{"user-1:Alice", "guest-ab:Bob"}

	assert.True(t, list.HasParticipant("user-1"))
	assert.True(t, list.HasParticipant("user-1:SomeoneElse"))
	assert.True(t, list.HasParticipant("guest-ab"))
	assert.False(t, list.HasParticipant("user-2"))
	assert.False(t, list.HasParticipant(""))
}

func TestParticipantList_WithoutParticipant(t *testing.T) {
	list := domain.ParticipantList{"user-1:Alice", "user-1:Dup", "user-2:Bob"}

	remaining := list.WithoutParticipant("user-1")
	assert.Equal(t, domain.ParticipantList{"user-2:Bob"}, remaining)

	// Original list untouched.
	assert.Len(t, list, 3)

	// No match removes nothing.
	assert.Equal(t, remaining, remaining.WithoutParticipant("user-9"))
}
