package errors

import "errors"

// Common error types for the face auth client
var (
	// Credential store errors
	ErrEmptyValue        = errors.New("empty credential value")
	ErrIncompleteSession = errors.New("access and refresh tokens must be stored together")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")

	// Capture errors
	ErrNoImage  = errors.New("no image captured")
	ErrCanceled = errors.New("capture canceled")

	// General errors
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
