package repository

import "errors"

// Generic repository errors.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means the write violated a unique constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrRevisionConflict means a compare-and-swap update lost against a
	// concurrent writer; callers should re-fetch and retry.
	ErrRevisionConflict = errors.New("repository: revision conflict")
)

// Resource-specific aliases.
var (
	ErrUserNotFound       = ErrNotFound
	ErrRoomNotFound       = ErrNotFound
	ErrWhiteboardNotFound = ErrNotFound
)
