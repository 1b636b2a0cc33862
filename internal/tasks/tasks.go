package tasks

import "encoding/json"

// Task type names.
const (
	// TypeWhiteboardPersist writes a whiteboard document behind the
	// realtime path.
	TypeWhiteboardPersist = "whiteboard:persist"
	// TypeRoomSweep is the periodic idle-room closure check.
	TypeRoomSweep = "room:sweep"
)

// WhiteboardPersistPayload carries one whiteboard write.
type WhiteboardPersistPayload struct {
	RoomID   string          `json:"room_id"`
	ActorID  string          `json:"actor_id"`
	Document json.RawMessage `json:"document"`
}

// NewWhiteboardPersistTask serializes the payload for enqueueing.
func NewWhiteboardPersistTask(roomID, actorID string, document json.RawMessage) ([]byte, error) {
	payload := WhiteboardPersistPayload{
		RoomID:   roomID,
		ActorID:  actorID,
		Document: document,
	}
	return json.Marshal(payload)
}

// NewRoomSweepTask serializes the (empty) sweep payload.
func NewRoomSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
