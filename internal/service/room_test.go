package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
	"github.com/JojayD/codecanvas-sub000/internal/repository/mocks"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

func newRoomService(roomRepo *mocks.RoomRepository, wbRepo *mocks.WhiteboardRepository, stateRepo *mocks.StateRepository) *service.RoomService {
	resolver := service.NewIdentityResolver(stateRepo)
	return service.NewRoomService(roomRepo, wbRepo, stateRepo, resolver)
}

func openRoom(id string, publicID int64, creator string, participants ...string) *domain.Room {
	return &domain.Room{
		ID:           id,
		PublicID:     publicID,
		CreatorID:    creator,
		Participants: domain.ParticipantList(participants),
		IsOpen:       true,
		Revision:     2,
	}
}

// --- CreateRoom ---

func TestRoomService_CreateRoom_RetriesTakenPublicID(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	wbRepo := new(mocks.WhiteboardRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, wbRepo, stateRepo)
	ctx := context.Background()

	// First generated id is taken, second is free.
	roomRepo.On("IsPublicIDTaken", ctx, mock.AnythingOfType("int64")).Return(true, nil).Once()
	roomRepo.On("IsPublicIDTaken", ctx, mock.AnythingOfType("int64")).Return(false, nil).Once()
	roomRepo.On("Insert", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.ID != "" && r.CreatorID == "user-7" && r.IsOpen &&
			r.PublicID >= 100000 && r.PublicID <= 999999
	})).Return(nil).Once()
	stateRepo.On("RememberHost", ctx, mock.AnythingOfType("string"), "user-7", mock.AnythingOfType("time.Duration")).Return(nil).Once()
	wbRepo.On("Save", ctx, mock.MatchedBy(func(wb *domain.Whiteboard) bool {
		return wb.Document == "{}"
	})).Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("domain.RoomEvent")).Return(nil).Once()

	room, err := svc.CreateRoom(ctx, "user-7", "Reverse a list", "go")

	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "user-7", room.CreatorID)
	assert.True(t, room.IsOpen)
	roomRepo.AssertExpectations(t)
	wbRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_SurvivesWhiteboardFailure(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	wbRepo := new(mocks.WhiteboardRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, wbRepo, stateRepo)
	ctx := context.Background()

	roomRepo.On("IsPublicIDTaken", ctx, mock.AnythingOfType("int64")).Return(false, nil).Once()
	roomRepo.On("Insert", ctx, mock.AnythingOfType("*domain.Room")).Return(nil).Once()
	stateRepo.On("RememberHost", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	wbRepo.On("Save", ctx, mock.AnythingOfType("*domain.Whiteboard")).Return(errors.New("gorm: table gone")).Once()
	stateRepo.On("PublishRoomEvent", ctx, mock.Anything, mock.Anything).Return(nil).Once()

	room, err := svc.CreateRoom(ctx, "user-7", "", "")

	require.NoError(t, err)
	assert.NotNil(t, room)
	roomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_EmptyCreatorRejected(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))

	room, err := svc.CreateRoom(context.Background(), "  ", "", "")

	assert.Nil(t, room)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	roomRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

// --- Resolve ---

func TestRoomService_Resolve_PublicIDThenUUIDFallback(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	want := openRoom("room-uuid-1", 123456, "user-1")

	// Numeric id hits the public-id index first.
	roomRepo.On("FindByPublicID", ctx, int64(123456)).Return(want, nil).Once()
	got, err := svc.Resolve(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A numeric string that is not a public id still falls back to the
	// primary key.
	roomRepo.On("FindByPublicID", ctx, int64(999999)).Return(nil, repository.ErrRoomNotFound).Once()
	roomRepo.On("FindByID", ctx, "999999").Return(nil, repository.ErrRoomNotFound).Once()
	_, err = svc.Resolve(ctx, "999999")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	roomRepo.AssertExpectations(t)
}

// --- JoinRoom ---

func TestRoomService_JoinRoom_CapacityEnforced(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	full := openRoom("room-a", 111111, "user-1", "user-1:A", "user-2:B", "user-3:C")

	roomRepo.On("FindByID", ctx, "room-a").Return(full, nil).Once()

	room, err := svc.JoinRoom(ctx, "room-a", "user-4", "Dave")

	assert.Nil(t, room)
	assert.ErrorIs(t, err, service.ErrRoomFull)
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_DuplicateIsNoOp(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	existing := openRoom("room-a", 111111, "user-1", "user-1:Alice", "user-2:Bob")

	roomRepo.On("FindByID", ctx, "room-a").Return(existing, nil).Once()

	// Same user under a different display name is still the same user.
	room, err := svc.JoinRoom(ctx, "room-a", "user-2", "Bobby")

	require.NoError(t, err)
	assert.Len(t, room.Participants, 2)
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_ClosedRoomRejected(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	closed := openRoom("room-a", 111111, "user-1")
	closed.Close()

	roomRepo.On("FindByID", ctx, "room-a").Return(closed, nil).Once()

	_, err := svc.JoinRoom(ctx, "room-a", "user-2", "Bob")
	assert.ErrorIs(t, err, service.ErrRoomClosed)
}

func TestRoomService_JoinRoom_RetriesRevisionConflict(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()

	first := openRoom("room-a", 111111, "user-1", "user-1:Alice")
	second := openRoom("room-a", 111111, "user-1", "user-1:Alice")
	second.Revision = 3

	roomRepo.On("FindByID", ctx, "room-a").Return(first, nil).Once()
	roomRepo.On("UpdateWithRevision", ctx, mock.AnythingOfType("*domain.Room"), uint(2)).Return(repository.ErrRevisionConflict).Once()
	roomRepo.On("FindByID", ctx, "room-a").Return(second, nil).Once()
	roomRepo.On("UpdateWithRevision", ctx, mock.AnythingOfType("*domain.Room"), uint(3)).Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.AnythingOfType("domain.RoomEvent")).Return(nil).Once()

	room, err := svc.JoinRoom(ctx, "room-a", "user-2", "Bob")

	require.NoError(t, err)
	assert.True(t, room.Participants.HasParticipant("user-2"))
	roomRepo.AssertExpectations(t)
}

// --- LeaveRoom / host exit ---

func TestRoomService_LeaveRoom_HostExitClosesRoom(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()
	room := openRoom("room-a", 111111, "host-1", "host-1:Alice", "user-2:Bob")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil)
	roomRepo.On("UpdateWithRevision", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.IsClosed() && len(r.Participants) == 0
	}), uint(2)).Return(nil).Once()
	stateRepo.On("ForgetHost", ctx, "room-a").Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.EventRoomClosed
	})).Return(nil).Once()

	got, wasHostExit, err := svc.LeaveRoom(ctx, "room-a", "host-1", "", true)

	require.NoError(t, err)
	assert.True(t, wasHostExit)
	require.NotNil(t, got)
	assert.True(t, got.IsClosed())
	assert.Empty(t, got.Participants)
	roomRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestRoomService_LeaveRoom_AuthSessionOutranksStaleClaimedID(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()
	room := openRoom("room-a", 111111, "user-7", "user-7:Alice", "guest-xy:Bob")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil)
	roomRepo.On("UpdateWithRevision", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.IsClosed() && len(r.Participants) == 0
	}), uint(2)).Return(nil).Once()
	stateRepo.On("ForgetHost", ctx, "room-a").Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.EventRoomClosed
	})).Return(nil).Once()

	// The client lost its own id, but the session still proves the
	// actor is the creator: the highest tier must convert the leave
	// into a closure.
	got, wasHostExit, err := svc.LeaveRoom(ctx, "room-a", "guest-stale", "user-7", true)

	require.NoError(t, err)
	assert.True(t, wasHostExit)
	assert.True(t, got.IsClosed())
	roomRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestRoomService_LeaveRoom_NonHostRemovesOnlyOwnToken(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()
	room := openRoom("room-a", 111111, "host-1", "host-1:Alice", "user-2:Bob")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil)
	roomRepo.On("UpdateWithRevision", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.IsOpen && len(r.Participants) == 1 && r.Participants[0] == "host-1:Alice"
	}), uint(2)).Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.EventParticipantsChanged
	})).Return(nil).Once()

	got, wasHostExit, err := svc.LeaveRoom(ctx, "room-a", "user-2", "", true)

	require.NoError(t, err)
	assert.False(t, wasHostExit)
	assert.True(t, got.IsOpen)
	roomRepo.AssertExpectations(t)
}

func TestRoomService_LeaveRoom_NoMatchingTokenIsNoOp(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	room := openRoom("room-a", 111111, "host-1", "host-1:Alice")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil).Once()

	got, wasHostExit, err := svc.LeaveRoom(ctx, "room-a", "user-9", "", false)

	require.NoError(t, err)
	assert.False(t, wasHostExit)
	assert.Len(t, got.Participants, 1)
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_HandleHostExit_FailSafeOnStoreError(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()

	// Any read failure must degrade to "not host"; a flaky store is
	// never allowed to destroy a room.
	roomRepo.On("FindByID", ctx, "room-a").Return(nil, errors.New("gorm: connection refused")).Once()

	closed := svc.HandleHostExit(ctx, "room-a", "host-1", "", "")

	assert.Nil(t, closed)
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

// --- CloseRoom ---

func TestRoomService_CloseRoom_Idempotent(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	closed := openRoom("room-a", 111111, "host-1")
	closed.Close()

	roomRepo.On("FindByID", ctx, "room-a").Return(closed, nil).Once()

	got, err := svc.CloseRoom(ctx, "room-a", "host-1")

	require.NoError(t, err)
	assert.True(t, got.IsClosed())
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

// --- ForceClose ---

func TestRoomService_ForceClose_UnknownMatchTypeRejected(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))

	room, status, err := svc.ForceClose(context.Background(), "room-a", domain.MatchType("admin_override"), "user-1", "")

	assert.Nil(t, room)
	assert.Equal(t, "rejected:unknown_match_type", status)
	assert.ErrorIs(t, err, service.ErrCloseNotPermitted)
	roomRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestRoomService_ForceClose_VerificationFailureRejected(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), new(mocks.StateRepository))
	ctx := context.Background()
	room := openRoom("room-a", 111111, "host-1", "host-1:Alice")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil).Once()

	// Claiming a valid match type does not help when the ids disagree.
	got, status, err := svc.ForceClose(ctx, "room-a", domain.MatchUserID, "user-9", "")

	assert.Nil(t, got)
	assert.Equal(t, "rejected:verification_failed", status)
	assert.ErrorIs(t, err, service.ErrCloseNotPermitted)
	roomRepo.AssertNotCalled(t, "UpdateWithRevision", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_ForceClose_VerifiedCloses(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()
	room := openRoom("room-a", 111111, "host-1", "host-1:Alice")

	roomRepo.On("FindByID", ctx, "room-a").Return(room, nil)
	roomRepo.On("UpdateWithRevision", ctx, mock.AnythingOfType("*domain.Room"), uint(2)).Return(nil).Once()
	stateRepo.On("ForgetHost", ctx, "room-a").Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-a", mock.Anything).Return(nil).Once()

	got, status, err := svc.ForceClose(ctx, "room-a", domain.MatchUserID, "host-1", "")

	require.NoError(t, err)
	assert.Equal(t, "verified:user_id_match", status)
	assert.True(t, got.IsClosed())
}

// --- SweepIdleRooms ---

func TestRoomService_SweepIdleRooms_ContinuesPastFailures(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	stateRepo := new(mocks.StateRepository)
	svc := newRoomService(roomRepo, new(mocks.WhiteboardRepository), stateRepo)
	ctx := context.Background()

	brokenRoom := openRoom("room-bad", 111111, "u1")
	idleRoom := openRoom("room-ok", 222222, "u2")

	roomRepo.On("FindOpenIdleSince", ctx, mock.AnythingOfType("time.Time")).
		Return([]domain.Room{*brokenRoom, *idleRoom}, nil).Once()
	roomRepo.On("FindByID", ctx, "room-bad").Return(nil, errors.New("gorm: timeout"))
	roomRepo.On("FindByID", ctx, "room-ok").Return(idleRoom, nil)
	roomRepo.On("UpdateWithRevision", ctx, mock.AnythingOfType("*domain.Room"), uint(2)).Return(nil).Once()
	stateRepo.On("ForgetHost", ctx, "room-ok").Return(nil).Once()
	stateRepo.On("PublishRoomEvent", ctx, "room-ok", mock.Anything).Return(nil).Once()

	closed, err := svc.SweepIdleRooms(ctx, time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, closed)
}

// --- Concurrency against a real compare-and-swap store ---

// casRoomStore is an in-memory RoomRepository with real revision
// semantics, enough to race two writers against each other.
type casRoomStore struct {
	mu   sync.Mutex
	room domain.Room
}

func (s *casRoomStore) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room.ID != id {
		return nil, repository.ErrRoomNotFound
	}
	out := s.room
	out.Participants = append(domain.ParticipantList(nil), s.room.Participants...)
	return &out, nil
}

func (s *casRoomStore) FindByPublicID(ctx context.Context, publicID int64) (*domain.Room, error) {
	return nil, repository.ErrRoomNotFound
}

func (s *casRoomStore) Insert(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = *room
	return nil
}

func (s *casRoomStore) UpdateWithRevision(ctx context.Context, room *domain.Room, expected uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room.Revision != expected {
		return repository.ErrRevisionConflict
	}
	room.Revision = expected + 1
	s.room = *room
	s.room.Participants = append(domain.ParticipantList(nil), room.Participants...)
	return nil
}

func (s *casRoomStore) Delete(ctx context.Context, id string) error { return nil }

func (s *casRoomStore) IsPublicIDTaken(ctx context.Context, publicID int64) (bool, error) {
	return false, nil
}

func (s *casRoomStore) FindOpenIdleSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	return nil, nil
}

func TestRoomService_ConcurrentLeaves_BothLand(t *testing.T) {
	store := &casRoomStore{room: domain.Room{
		ID:           "room-a",
		PublicID:     111111,
		CreatorID:    "host-1",
		Participants: domain.ParticipantList{"host-1:Alice", "user-2:Bob", "user-3:Cara"},
		IsOpen:       true,
	}}
	stateRepo := new(mocks.StateRepository)
	stateRepo.On("PublishRoomEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := service.NewRoomService(store, new(mocks.WhiteboardRepository), stateRepo, service.NewIdentityResolver(stateRepo))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, uid := range []string{"user-2", "user-3"} {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, _, err := svc.LeaveRoom(ctx, "room-a", uid, "", false)
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := store.FindByID(ctx, "room-a")
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantList{"host-1:Alice"}, final.Participants)
	assert.True(t, final.IsOpen)
}
