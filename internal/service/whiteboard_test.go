package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
	"github.com/JojayD/codecanvas-sub000/internal/repository/mocks"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

func TestWhiteboardService_Apply_BumpsVersionAndPublishes(t *testing.T) {
	wbRepo := new(mocks.WhiteboardRepository)
	stateRepo := new(mocks.StateRepository)
	svc := service.NewWhiteboardService(wbRepo, stateRepo)
	ctx := context.Background()

	wbRepo.On("FindByRoomID", ctx, "room-a").
		Return(&domain.Whiteboard{ID: 1, RoomID: "room-a", Document: "{}", Version: 4}, nil).Once()
	wbRepo.On("Save", ctx, mock.MatchedBy(func(wb *domain.Whiteboard) bool {
		return wb.Version == 5 && wb.Document == `{"strokes":[]}`
	})).Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.EventWhiteboardChanged && e.Revision == 5
	})).Return(nil).Once()

	wb, err := svc.Apply(ctx, "room-a", "user-1", json.RawMessage(`{"strokes":[]}`))

	require.NoError(t, err)
	assert.Equal(t, uint(5), wb.Version)
	wbRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestWhiteboardService_Apply_RecoversMissingRow(t *testing.T) {
	wbRepo := new(mocks.WhiteboardRepository)
	stateRepo := new(mocks.StateRepository)
	svc := service.NewWhiteboardService(wbRepo, stateRepo)
	ctx := context.Background()

	// Provisioning at create time is best-effort, so the row may never
	// have existed.
	wbRepo.On("FindByRoomID", ctx, "room-a").Return(nil, repository.ErrWhiteboardNotFound).Once()
	wbRepo.On("Save", ctx, mock.MatchedBy(func(wb *domain.Whiteboard) bool {
		return wb.RoomID == "room-a" && wb.Version == 1
	})).Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.Anything).Return(nil).Once()

	wb, err := svc.Apply(ctx, "room-a", "user-1", json.RawMessage(`{}`))

	require.NoError(t, err)
	assert.Equal(t, uint(1), wb.Version)
}

func TestWhiteboardService_Apply_RejectsInvalidJSON(t *testing.T) {
	wbRepo := new(mocks.WhiteboardRepository)
	svc := service.NewWhiteboardService(wbRepo, new(mocks.StateRepository))

	wb, err := svc.Apply(context.Background(), "room-a", "user-1", json.RawMessage(`{"broken`))

	assert.Nil(t, wb)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	wbRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestWhiteboardService_Get_NotFound(t *testing.T) {
	wbRepo := new(mocks.WhiteboardRepository)
	svc := service.NewWhiteboardService(wbRepo, new(mocks.StateRepository))

	wbRepo.On("FindByRoomID", mock.Anything, "room-x").Return(nil, repository.ErrWhiteboardNotFound).Once()

	wb, err := svc.Get(context.Background(), "room-x")

	assert.Nil(t, wb)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}
