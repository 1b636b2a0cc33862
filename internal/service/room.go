package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

const (
	// roomCapacity is the participant cap: more than 2 existing
	// participants blocks further joins.
	roomCapacity = 3
	// casAttempts bounds fetch-mutate-persist retries on revision
	// conflicts.
	casAttempts = 3
	// publicIDAttempts bounds public-id generation retries on collision.
	publicIDAttempts = 10
	// hostHintTTL is how long the remembered-host hint survives.
	hostHintTTL = 24 * time.Hour
)

// RoomService orchestrates the room lifecycle: create, resolve, join,
// leave, close, host-exit handling and forced closure.
type RoomService struct {
	roomRepo  repository.RoomRepository
	wbRepo    repository.WhiteboardRepository
	stateRepo repository.StateRepository
	resolver  *IdentityResolver
}

// NewRoomService creates the service.
func NewRoomService(roomRepo repository.RoomRepository, wbRepo repository.WhiteboardRepository, stateRepo repository.StateRepository, resolver *IdentityResolver) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if wbRepo == nil {
		panic("WhiteboardRepository cannot be nil for RoomService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomService")
	}
	if resolver == nil {
		panic("IdentityResolver cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, wbRepo: wbRepo, stateRepo: stateRepo, resolver: resolver}
}

// CreateRoom creates an open room owned by creatorID and provisions its
// whiteboard. Whiteboard provisioning is best-effort: a failure there is
// logged and the room creation still succeeds.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID, prompt, language string) (*domain.Room, error) {
	creatorID = domain.NormalizeID(creatorID)
	if creatorID == "" {
		return nil, ErrInvalidInput
	}
	logCtx := logrus.WithField("creator_id", creatorID)

	publicID, err := s.generateUniquePublicID(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique public room id")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("public_id", publicID)

	room := &domain.Room{
		ID:        uuid.NewString(),
		PublicID:  publicID,
		CreatorID: creatorID,
		IsOpen:    true,
		Prompt:    prompt,
		Language:  language,
	}
	if err := s.roomRepo.Insert(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// The unique index caught a collision the existence check
			// missed; treat it like generation exhaustion.
			logCtx.WithError(err).Error("Public room id collided at insert time")
			return nil, ErrInternalServer
		}
		logCtx.WithError(err).Error("Failed to insert new room")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	if err := s.stateRepo.RememberHost(ctx, room.ID, creatorID, hostHintTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to remember host hint")
	}
	if err := s.wbRepo.Save(ctx, &domain.Whiteboard{RoomID: room.ID, Document: "{}"}); err != nil {
		// Explicit partial-failure policy: the room exists even when the
		// whiteboard could not be provisioned.
		logCtx.WithError(err).Warn("Whiteboard provisioning failed for new room")
	}

	s.publish(ctx, room, domain.EventRoomCreated, creatorID)
	logCtx.Info("Room created successfully")
	return room, nil
}

// Resolve finds a room by either of its two names: the numeric public id
// first, the internal uuid as fallback.
func (s *RoomService) Resolve(ctx context.Context, anyID string) (*domain.Room, error) {
	if anyID == "" {
		return nil, ErrInvalidInput
	}
	if publicID, err := strconv.ParseInt(anyID, 10, 64); err == nil {
		room, err := s.roomRepo.FindByPublicID(ctx, publicID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithField("public_id", publicID).WithError(err).Error("Resolve: repository error on public id lookup")
			return nil, ErrInternalServer
		}
	}
	room, err := s.roomRepo.FindByID(ctx, anyID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", anyID).WithError(err).Error("Resolve: repository error on internal id lookup")
		return nil, ErrInternalServer
	}
	return room, nil
}

// JoinRoom adds a participant token to the room. A join by an id already
// present (in any token form) is a no-op returning the unchanged room;
// a full room rejects the join regardless of whether the id is novel.
func (s *RoomService) JoinRoom(ctx context.Context, anyID, userID, username string) (*domain.Room, error) {
	userID = domain.NormalizeID(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "user_id": userID})

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := s.Resolve(ctx, anyID)
		if err != nil {
			return nil, err
		}
		if room.IsClosed() {
			return nil, ErrRoomClosed
		}
		if room.Participants.HasParticipant(userID) {
			logCtx.Debug("Join is a duplicate, returning room unchanged")
			return room, nil
		}
		if len(room.Participants) >= roomCapacity {
			return nil, ErrRoomFull
		}

		room.Participants = append(room.Participants, domain.EncodeParticipant(userID, username))
		err = s.roomRepo.UpdateWithRevision(ctx, room, room.Revision)
		if errors.Is(err, repository.ErrRevisionConflict) {
			logCtx.WithField("attempt", attempt+1).Debug("Join lost a revision race, retrying")
			continue
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to persist join")
			return nil, ErrInternalServer
		}

		s.publish(ctx, room, domain.EventParticipantsChanged, userID)
		logCtx.WithField("participants", len(room.Participants)).Info("User joined room")
		return room, nil
	}
	logCtx.Warn("Join gave up after repeated revision conflicts")
	return nil, ErrInternalServer
}

// LeaveRoom removes the user's tokens from the room. With checkHostExit
// set, the host-exit path runs first with every identity signal the
// caller has, including the authenticated session id, and if it closed
// the room its result is returned immediately without further mutation.
func (s *RoomService) LeaveRoom(ctx context.Context, anyID, userID, authUserID string, checkHostExit bool) (*domain.Room, bool, error) {
	userID = domain.NormalizeID(userID)
	if userID == "" {
		return nil, false, ErrInvalidInput
	}
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "user_id": userID})

	if checkHostExit {
		if closed := s.HandleHostExit(ctx, anyID, userID, authUserID, ""); closed != nil {
			logCtx.Info("Leave converted into host-exit closure")
			return closed, true, nil
		}
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := s.Resolve(ctx, anyID)
		if err != nil {
			return nil, false, err
		}
		if room.IsClosed() {
			// Leaving a closed room has nothing left to do.
			return room, false, nil
		}
		remaining := room.Participants.WithoutParticipant(userID)
		if len(remaining) == len(room.Participants) {
			logCtx.Debug("Leave found no matching participant token")
			return room, false, nil
		}

		room.Participants = remaining
		err = s.roomRepo.UpdateWithRevision(ctx, room, room.Revision)
		if errors.Is(err, repository.ErrRevisionConflict) {
			logCtx.WithField("attempt", attempt+1).Debug("Leave lost a revision race, retrying")
			continue
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to persist leave")
			return nil, false, ErrInternalServer
		}

		s.publish(ctx, room, domain.EventParticipantsChanged, userID)
		logCtx.WithField("participants", len(room.Participants)).Info("User left room")
		return room, false, nil
	}
	logCtx.Warn("Leave gave up after repeated revision conflicts")
	return nil, false, ErrInternalServer
}

// HandleHostExit decides whether a departing user's leave becomes a room
// closure. It returns the closed room, or nil when the caller should
// proceed with an ordinary leave. Every failure on this path degrades to
// "not host": a transient read error must never destroy a room.
func (s *RoomService) HandleHostExit(ctx context.Context, anyID, userID, authUserID, createdByParam string) *domain.Room {
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "user_id": userID})

	room, err := s.Resolve(ctx, anyID)
	if err != nil {
		logCtx.WithError(err).Warn("Host-exit check could not load room, treating as not host")
		return nil
	}
	if room.IsClosed() {
		return nil
	}

	candidates := s.resolver.Resolve(ctx, room.ID, authUserID, userID, createdByParam)
	decision := domain.DetectHost(room, candidates)
	logCtx = logCtx.WithFields(logrus.Fields{"match_type": decision.MatchType, "is_host": decision.IsHost})

	if !decision.IsHost && !domain.AllowForcedCleanup(room, candidates) {
		logCtx.Debug("Host-exit check: not host, ordinary leave proceeds")
		return nil
	}

	closed, err := s.CloseRoom(ctx, anyID, userID)
	if err != nil {
		logCtx.WithError(err).Warn("Host-exit closure failed, treating as not host")
		return nil
	}
	logCtx.Info("Host exit closed the room")
	return closed
}

// CloseRoom moves the room to its terminal state, clearing participants
// in the same update. Idempotent: closing a closed room is a no-op.
func (s *RoomService) CloseRoom(ctx context.Context, anyID, actorID string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "actor_id": actorID})

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := s.Resolve(ctx, anyID)
		if err != nil {
			return nil, err
		}
		if room.IsClosed() {
			return room, nil
		}

		room.Close()
		err = s.roomRepo.UpdateWithRevision(ctx, room, room.Revision)
		if errors.Is(err, repository.ErrRevisionConflict) {
			logCtx.WithField("attempt", attempt+1).Debug("Close lost a revision race, retrying")
			continue
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to persist close")
			return nil, ErrInternalServer
		}

		// Best-effort cleanup; the closure itself already happened.
		if err := s.stateRepo.ForgetHost(ctx, room.ID); err != nil {
			logCtx.WithError(err).Warn("Failed to drop host hint on close")
		}
		s.publish(ctx, room, domain.EventRoomClosed, actorID)
		logCtx.Info("Room closed")
		return room, nil
	}
	logCtx.Warn("Close gave up after repeated revision conflicts")
	return nil, ErrInternalServer
}

// HostCheck exposes the detector decision for diagnostics. Read-only.
func (s *RoomService) HostCheck(ctx context.Context, anyID, authUserID, claimedUserID, createdByParam string) (*domain.Room, domain.HostDecision, error) {
	room, err := s.Resolve(ctx, anyID)
	if err != nil {
		return nil, domain.HostDecision{MatchType: domain.MatchNone}, err
	}
	candidates := s.resolver.Resolve(ctx, room.ID, authUserID, claimedUserID, createdByParam)
	return room, domain.DetectHost(room, candidates), nil
}

// ForceClose closes a room only after re-deriving host authority on the
// server from the submitted evidence; the client-claimed match type is
// vocabulary-checked but never trusted.
func (s *RoomService) ForceClose(ctx context.Context, anyID string, claimed domain.MatchType, userID, authUserID string) (*domain.Room, string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "user_id": userID, "claimed_match": claimed})

	if !domain.KnownMatchType(claimed) {
		logCtx.Warn("Force close rejected: unknown match type")
		return nil, "rejected:unknown_match_type", ErrCloseNotPermitted
	}
	room, err := s.Resolve(ctx, anyID)
	if err != nil {
		return nil, "rejected:room_not_found", err
	}

	decision := domain.DetectHost(room, domain.HostCandidates{
		AuthUserID:    authUserID,
		ClaimedUserID: userID,
	})
	if !decision.IsHost {
		logCtx.Warn("Force close rejected: direct match failed")
		return nil, "rejected:verification_failed", ErrCloseNotPermitted
	}

	closed, err := s.CloseRoom(ctx, anyID, userID)
	if err != nil {
		return nil, "rejected:close_failed", err
	}
	status := "verified:" + string(decision.MatchType)
	logCtx.WithField("status", status).Info("Force close verified and applied")
	return closed, status, nil
}

// UpdateContent applies a last-writer-wins update to the collaborative
// content fields. Nil pointers leave a field untouched.
func (s *RoomService) UpdateContent(ctx context.Context, anyID, actorID string, code, prompt, language *string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room": anyID, "actor_id": actorID})

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := s.Resolve(ctx, anyID)
		if err != nil {
			return nil, err
		}
		if room.IsClosed() {
			return nil, ErrRoomClosed
		}

		if code != nil {
			room.Code = *code
		}
		if prompt != nil {
			room.Prompt = *prompt
		}
		if language != nil {
			room.Language = *language
		}
		err = s.roomRepo.UpdateWithRevision(ctx, room, room.Revision)
		if errors.Is(err, repository.ErrRevisionConflict) {
			continue
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to persist content update")
			return nil, ErrInternalServer
		}

		s.publish(ctx, room, domain.EventContentChanged, actorID)
		return room, nil
	}
	logCtx.Warn("Content update gave up after repeated revision conflicts")
	return nil, ErrInternalServer
}

// DeleteRoom removes the row entirely. Outside the lifecycle protocol.
func (s *RoomService) DeleteRoom(ctx context.Context, anyID, actorID string) error {
	room, err := s.Resolve(ctx, anyID)
	if err != nil {
		return err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "actor_id": actorID})

	if err := s.roomRepo.Delete(ctx, room.ID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to delete room")
		return ErrInternalServer
	}
	if err := s.wbRepo.DeleteByRoomID(ctx, room.ID); err != nil {
		logCtx.WithError(err).Warn("Failed to delete whiteboard with room")
	}
	s.publish(ctx, room, domain.EventRoomDeleted, actorID)
	logCtx.Info("Room deleted")
	return nil
}

// SweepIdleRooms closes open rooms untouched for longer than idleFor,
// through the normal close path so invariants hold. One room failing
// does not stop the sweep.
func (s *RoomService) SweepIdleRooms(ctx context.Context, idleFor time.Duration) (int, error) {
	cutoff := time.Now().Add(-idleFor)
	rooms, err := s.roomRepo.FindOpenIdleSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep: list idle rooms: %w", err)
	}
	closed := 0
	for i := range rooms {
		if _, err := s.CloseRoom(ctx, rooms[i].ID, "sweeper"); err != nil {
			logrus.WithField("room_id", rooms[i].ID).WithError(err).Warn("Sweep failed to close idle room")
			continue
		}
		closed++
	}
	return closed, nil
}

// publish pushes a change-feed event. Feed failures never fail the
// mutation that triggered them.
func (s *RoomService) publish(ctx context.Context, room *domain.Room, eventType, actorID string) {
	event := domain.RoomEvent{
		Type:         eventType,
		RoomID:       room.ID,
		PublicID:     room.PublicID,
		Revision:     room.Revision,
		ActorID:      actorID,
		Participants: room.Participants,
	}
	if err := s.stateRepo.PublishRoomEvent(ctx, room.ID, event); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": room.ID, "event_type": eventType}).
			WithError(err).Warn("Failed to publish room event")
	}
}

// generateUniquePublicID draws random 6-digit public ids until one is
// free, bounded by publicIDAttempts. The unique index on public_id backs
// this check up at insert time.
func (s *RoomService) generateUniquePublicID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < publicIDAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(900000))
		if err != nil {
			return 0, fmt.Errorf("generate random public id: %w", err)
		}
		publicID := n.Int64() + 100000

		taken, err := s.roomRepo.IsPublicIDTaken(ctx, publicID)
		if err != nil {
			return 0, fmt.Errorf("check public id uniqueness: %w", err)
		}
		if !taken {
			return publicID, nil
		}
		logrus.WithField("public_id", publicID).Warnf("Generated public room id already exists, retrying (attempt %d)...", attempt+1)
	}
	return 0, fmt.Errorf("failed to generate a unique public room id after %d attempts", publicIDAttempts)
}
