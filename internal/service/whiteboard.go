package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

// WhiteboardService manages the versioned per-room drawing document.
type WhiteboardService struct {
	wbRepo    repository.WhiteboardRepository
	stateRepo repository.StateRepository
}

// NewWhiteboardService creates the service.
func NewWhiteboardService(wbRepo repository.WhiteboardRepository, stateRepo repository.StateRepository) *WhiteboardService {
	if wbRepo == nil {
		panic("WhiteboardRepository cannot be nil for WhiteboardService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for WhiteboardService")
	}
	return &WhiteboardService{wbRepo: wbRepo, stateRepo: stateRepo}
}

// Get returns the room's whiteboard.
func (s *WhiteboardService) Get(ctx context.Context, roomID string) (*domain.Whiteboard, error) {
	wb, err := s.wbRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrWhiteboardNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load whiteboard")
		return nil, ErrInternalServer
	}
	return wb, nil
}

// Apply replaces the document and bumps the version. The version exists
// so clients can drop stale or self-originated echoes; there is no
// conflict resolution here, last writer wins.
func (s *WhiteboardService) Apply(ctx context.Context, roomID, actorID string, document json.RawMessage) (*domain.Whiteboard, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "actor_id": actorID})

	if len(document) > 0 && !json.Valid(document) {
		return nil, ErrInvalidInput
	}

	wb, err := s.wbRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrWhiteboardNotFound) {
			logCtx.WithError(err).Error("Failed to load whiteboard for update")
			return nil, ErrInternalServer
		}
		// Provisioning at create time is best-effort, so the row may be
		// missing; recover here instead of failing the write.
		wb = &domain.Whiteboard{RoomID: roomID}
	}

	wb.Document = string(document)
	wb.Version++
	if err := s.wbRepo.Save(ctx, wb); err != nil {
		logCtx.WithError(err).Error("Failed to save whiteboard")
		return nil, ErrInternalServer
	}

	event := domain.RoomEvent{
		Type:     domain.EventWhiteboardChanged,
		RoomID:   roomID,
		Revision: wb.Version,
		ActorID:  actorID,
		Payload:  document,
	}
	if err := s.stateRepo.PublishRoomEvent(ctx, roomID, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish whiteboard event")
	}
	logCtx.WithField("version", wb.Version).Debug("Whiteboard updated")
	return wb, nil
}
