package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Round / Lobby Errors
	ErrRoundOver      = errors.New("round is over, no further operations accepted")
	ErrRoomFull       = errors.New("tournament room is full")
	ErrRoomInProgress = errors.New("tournament room already in progress")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
