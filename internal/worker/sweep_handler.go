package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/service"
)

// RoomSweepHandler runs the periodic idle-room closure check.
type RoomSweepHandler struct {
	roomService *service.RoomService
	idleTTL     time.Duration
}

// NewRoomSweepHandler creates the handler.
func NewRoomSweepHandler(roomService *service.RoomService, idleTTL time.Duration) *RoomSweepHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomSweepHandler")
	}
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	return &RoomSweepHandler{roomService: roomService, idleTTL: idleTTL}
}

// ProcessTask implements asynq.Handler. Individual room failures are
// absorbed inside the sweep; only a failed listing fails the task.
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing periodic room sweep...")

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	closed, err := h.roomService.SweepIdleRooms(sweepCtx, h.idleTTL)
	if err != nil {
		logCtx.WithError(err).Error("Room sweep failed")
		return err
	}
	if closed > 0 {
		logCtx.Infof("Room sweep closed %d idle room(s)", closed)
	} else {
		logCtx.Debug("Room sweep found nothing to close")
	}
	return nil
}
