package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
)

// Error is a classified error with a message safe to show to clients
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func invalidInput(format string, args ...any) error {
	return newError(ErrInvalidInput, fmt.Sprintf(format, args...))
}

var (
	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid username or password")
	ErrUsernameTaken      = newError(ErrConflict, "username already exists")
	ErrUserIDTaken        = newError(ErrConflict, "user_id already exists")
	ErrUserNotFound       = newError(ErrNotFound, "user not found")

	ErrPlaceNotFound = newError(ErrNotFound, "place not found")
	ErrQueueNotFound = newError(ErrNotFound, "queue entry not found")
	ErrMatchNotFound = newError(ErrNotFound, "match not found")

	ErrAlreadyQueued  = newError(ErrConflict, "already queued at this place")
	ErrAlreadyMatched = newError(ErrConflict, "already matched at this place")
	ErrAlreadyAgreed  = newError(ErrConflict, "already agreed")
	ErrNotParticipant = newError(ErrForbidden, "not a participant of this match")
	ErrNotAgreedYet   = newError(ErrInvalidState, "both participants have not agreed yet")
	ErrMatchClosed    = newError(ErrInvalidState, "match is no longer pending")
	ErrNoCandidate    = newError(ErrUnavailable, "matching candidate is no longer available")

	ErrUploadDisabled = newError(ErrUnavailable, "image upload is not configured")
)
