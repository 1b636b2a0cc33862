package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

// IdentityResolver gathers every identity signal available for the
// acting user into one ranked candidate set. It is the only place that
// reads auxiliary identity state; the host detector itself stays pure
// and receives the candidates explicitly.
type IdentityResolver struct {
	stateRepo repository.StateRepository
}

// NewIdentityResolver creates the resolver.
func NewIdentityResolver(stateRepo repository.StateRepository) *IdentityResolver {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for IdentityResolver")
	}
	return &IdentityResolver{stateRepo: stateRepo}
}

// Resolve assembles the candidate set for a request. authUserID comes
// from the verified session (highest trust), claimedUserID is whatever
// the client believes its own id is (including self-assigned guest ids),
// createdByParam is the created_by echo (lowest trust). When the client
// lost its own id, the server-side remembered-host hint stands in at the
// claimed tier. Missing signals just shrink the set; this never fails.
func (r *IdentityResolver) Resolve(ctx context.Context, roomID, authUserID, claimedUserID, createdByParam string) domain.HostCandidates {
	c := domain.HostCandidates{
		AuthUserID:     authUserID,
		ClaimedUserID:  claimedUserID,
		CreatedByParam: createdByParam,
	}
	if c.ClaimedUserID == "" && roomID != "" {
		hint, err := r.stateRepo.RememberedHost(ctx, roomID)
		if err != nil {
			// Read-only path: a failed hint lookup only shrinks the set.
			logrus.WithField("room_id", roomID).WithError(err).Warn("Identity resolver: host hint lookup failed")
		} else {
			c.ClaimedUserID = hint
		}
	}
	return c
}
