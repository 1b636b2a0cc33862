package repository

import (
	"context"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// UserRepository stores registered accounts.
type UserRepository interface {
	// FindByUsername returns ErrUserNotFound when no account matches.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByID returns ErrUserNotFound when no account matches.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// Save creates or updates an account. Username/email collisions map
	// to ErrDuplicateEntry.
	Save(ctx context.Context, user *domain.User) error
}
