package domain

import "encoding/json"

// Room event types carried on the realtime change feed.
const (
	EventRoomCreated         = "room_created"
	EventParticipantsChanged = "participants_changed"
	EventContentChanged      = "content_changed"
	EventRoomClosed          = "room_closed"
	EventRoomDeleted         = "room_deleted"
	EventWhiteboardChanged   = "whiteboard_changed"
)

// RoomEvent is published to the room's redis channel after every
// successful store mutation and fanned out to websocket subscribers.
// Delivery is at-least-once with no ordering guarantee; Revision lets
// clients de-duplicate their own echoes.
type RoomEvent struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"room_id"`
	PublicID     int64           `json:"public_id"`
	Revision     uint            `json:"revision"`
	ActorID      string          `json:"actor_id,omitempty"`
	Participants ParticipantList `json:"participants,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}
