package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write hits a unique constraint
	ErrDuplicate = errors.New("duplicate")
	// ErrClaimLost is returned when a queue entry stopped being active
	// before it could be claimed for a match
	ErrClaimLost = errors.New("queue entry no longer active")
	// ErrOpenMatch is returned when the user already has a non-rejected
	// match at the place
	ErrOpenMatch = errors.New("user already has an open match at this place")
	// ErrStaleUpdate is returned when a conditional update matched no row
	ErrStaleUpdate = errors.New("conditional update did not apply")
)

// Unique constraints callers tell apart
const (
	UsersUsernameKey   = "users_username_key"
	UsersUserIDKey     = "users_user_id_key"
	QueuesUserPlaceKey = "queues_user_place_key"
	MatchesPairPlace   = "matches_pair_place_key"
)

// DuplicateError names the unique constraint a write violated.
// It matches ErrDuplicate with errors.Is.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: %s", e.Constraint)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// ViolatedConstraint returns the constraint behind a duplicate error, or ""
func ViolatedConstraint(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Constraint
	}
	return ""
}

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// duplicateFrom converts a unique_violation into a DuplicateError
func duplicateFrom(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &DuplicateError{Constraint: pgErr.ConstraintName}
	}
	return &DuplicateError{}
}

type scanner interface {
	Scan(dest ...any) error
}
