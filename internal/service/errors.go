package service

import "errors"

// Business errors surfaced to the HTTP layer.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomClosed           = errors.New("room is closed")
	ErrRoomFull             = errors.New("room is full")
	ErrInvalidInput         = errors.New("invalid input")
	ErrCloseNotPermitted    = errors.New("close not permitted")
	ErrUserNotFound         = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrInternalServer       = errors.New("internal server error")
)
