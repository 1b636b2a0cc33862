package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/service"
	"github.com/JojayD/codecanvas-sub000/internal/tasks"
)

// WhiteboardPersistHandler writes whiteboard documents arriving from the
// realtime path. Persisting also publishes the versioned update back to
// the change feed, so subscribers only ever see persisted versions.
type WhiteboardPersistHandler struct {
	wbService *service.WhiteboardService
}

// NewWhiteboardPersistHandler creates the handler.
func NewWhiteboardPersistHandler(wbService *service.WhiteboardService) *WhiteboardPersistHandler {
	if wbService == nil {
		panic("WhiteboardService cannot be nil for WhiteboardPersistHandler")
	}
	return &WhiteboardPersistHandler{wbService: wbService}
}

// ProcessTask implements asynq.Handler.
func (h *WhiteboardPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})

	var payload tasks.WhiteboardPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal whiteboard persist payload")
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	wb, err := h.wbService.Apply(ctx, payload.RoomID, payload.ActorID, payload.Document)
	if err != nil {
		logCtx.WithError(err).Error("Failed to persist whiteboard document")
		if errors.Is(err, service.ErrInvalidInput) {
			// A malformed document never becomes valid on retry.
			return fmt.Errorf("persist whiteboard for room %s: %v: %w", payload.RoomID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("persist whiteboard for room %s: %w", payload.RoomID, err)
	}

	logCtx.WithField("version", wb.Version).Debug("Whiteboard persist task processed")
	return nil
}
