package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/JojayD/codecanvas-sub000/internal/repository/mocks"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

func TestIdentityResolver_PassesSignalsThrough(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	resolver := service.NewIdentityResolver(stateRepo)

	c := resolver.Resolve(context.Background(), "room-a", "user-1", "user-2", "user-3")

	assert.Equal(t, "user-1", c.AuthUserID)
	assert.Equal(t, "user-2", c.ClaimedUserID)
	assert.Equal(t, "user-3", c.CreatedByParam)
	// Claimed id present, so the stored hint is never consulted.
	stateRepo.AssertNotCalled(t, "RememberedHost", mock.Anything, "room-a")
}

func TestIdentityResolver_HintFillsMissingClaimedID(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	resolver := service.NewIdentityResolver(stateRepo)
	ctx := context.Background()

	stateRepo.On("RememberedHost", ctx, "room-a").Return("user-7", nil).Once()

	c := resolver.Resolve(ctx, "room-a", "", "", "")

	assert.Equal(t, "user-7", c.ClaimedUserID)
	stateRepo.AssertExpectations(t)
}

func TestIdentityResolver_HintLookupFailureShrinksSet(t *testing.T) {
	stateRepo := new(mocks.StateRepository)
	resolver := service.NewIdentityResolver(stateRepo)
	ctx := context.Background()

	stateRepo.On("RememberedHost", ctx, "room-a").Return("", errors.New("redis: connection refused")).Once()

	c := resolver.Resolve(ctx, "room-a", "user-1", "", "")

	assert.Equal(t, "user-1", c.AuthUserID)
	assert.Empty(t, c.ClaimedUserID)
}
