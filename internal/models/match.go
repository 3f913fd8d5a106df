package models

import (
	"errors"
	"fmt"
	"time"
)

// MatchStatus is the stored status of a match
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchBothAgreed MatchStatus = "both_agreed"
	// MatchRejected is reserved for moderation; no operation sets it yet.
	MatchRejected MatchStatus = "rejected"
)

var (
	ErrSameUser       = errors.New("a match needs two distinct users")
	ErrNotParticipant = errors.New("user is not a participant of this match")
	ErrAlreadyAgreed  = errors.New("participant already agreed")
	ErrNotPending     = errors.New("match is no longer pending")
	ErrInconsistent   = errors.New("inconsistent match state")
)

// Side identifies a participant slot in a canonically ordered match
type Side int

const (
	SideA Side = iota + 1
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "a"
	case SideB:
		return "b"
	default:
		return "unknown"
	}
}

// ConsentState is one of Pending, BothAgreed or Rejected.
type ConsentState interface {
	Status() MatchStatus
	flags() (aAgreed, bAgreed bool)
}

// Pending means at most one participant has agreed
type Pending struct {
	AAgreed bool
	BAgreed bool
}

// BothAgreed is terminal; At is when contacts were shared
type BothAgreed struct {
	At time.Time
}

// Rejected is terminal and keeps whatever consent was given before
type Rejected struct {
	AAgreed bool
	BAgreed bool
}

func (Pending) Status() MatchStatus { return MatchPending }
func (p Pending) flags() (bool, bool) { return p.AAgreed, p.BAgreed }
func (BothAgreed) Status() MatchStatus { return MatchBothAgreed }
func (BothAgreed) flags() (bool, bool) { return true, true }
func (Rejected) Status() MatchStatus { return MatchRejected }
func (r Rejected) flags() (bool, bool) { return r.AAgreed, r.BAgreed }

// Match is a proposed pairing of two users at a place.
// UserAID is always lexicographically smaller than UserBID.
type Match struct {
	ID        string
	UserAID   string
	UserBID   string
	PlaceID   string
	State     ConsentState
	MatchedAt time.Time
}

// NewMatch builds a pending match, normalizing the pair order
func NewMatch(id, userID, otherID, placeID string, now time.Time) (*Match, error) {
	if userID == "" || otherID == "" || placeID == "" {
		return nil, fmt.Errorf("match requires both users and a place")
	}
	if userID == otherID {
		return nil, ErrSameUser
	}
	a, b := userID, otherID
	if a > b {
		a, b = b, a
	}
	return &Match{
		ID:        id,
		UserAID:   a,
		UserBID:   b,
		PlaceID:   placeID,
		State:     Pending{},
		MatchedAt: now,
	}, nil
}

// RestoreMatch rebuilds a match from stored columns and checks that
// status and consent flags agree with each other.
func RestoreMatch(id, userAID, userBID, placeID string, status MatchStatus, aAgreed, bAgreed bool, matchedAt time.Time, contactSharedAt *time.Time) (*Match, error) {
	if userAID >= userBID {
		return nil, fmt.Errorf("%w: users %q/%q not in canonical order", ErrInconsistent, userAID, userBID)
	}

	var state ConsentState
	switch status {
	case MatchPending:
		if aAgreed && bAgreed {
			return nil, fmt.Errorf("%w: pending with both flags set", ErrInconsistent)
		}
		state = Pending{AAgreed: aAgreed, BAgreed: bAgreed}
	case MatchBothAgreed:
		if !aAgreed || !bAgreed {
			return nil, fmt.Errorf("%w: both_agreed without both flags", ErrInconsistent)
		}
		if contactSharedAt == nil {
			return nil, fmt.Errorf("%w: both_agreed without contact_shared_at", ErrInconsistent)
		}
		state = BothAgreed{At: *contactSharedAt}
	case MatchRejected:
		state = Rejected{AAgreed: aAgreed, BAgreed: bAgreed}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInconsistent, status)
	}

	return &Match{
		ID:        id,
		UserAID:   userAID,
		UserBID:   userBID,
		PlaceID:   placeID,
		State:     state,
		MatchedAt: matchedAt,
	}, nil
}

// Status returns the status derived from the consent state
func (m *Match) Status() MatchStatus {
	return m.State.Status()
}

// AAgreed reports whether user A has agreed
func (m *Match) AAgreed() bool {
	a, _ := m.State.flags()
	return a
}

// BAgreed reports whether user B has agreed
func (m *Match) BAgreed() bool {
	_, b := m.State.flags()
	return b
}

// ContactSharedAt returns when both agreed, or nil
func (m *Match) ContactSharedAt() *time.Time {
	if s, ok := m.State.(BothAgreed); ok {
		at := s.At
		return &at
	}
	return nil
}

// SideOf returns the slot the user occupies in the match
func (m *Match) SideOf(userID string) (Side, bool) {
	switch userID {
	case m.UserAID:
		return SideA, true
	case m.UserBID:
		return SideB, true
	default:
		return 0, false
	}
}

// Counterpart returns the other participant's ID
func (m *Match) Counterpart(userID string) (string, bool) {
	switch userID {
	case m.UserAID:
		return m.UserBID, true
	case m.UserBID:
		return m.UserAID, true
	default:
		return "", false
	}
}

// HasAgreed reports the consent flag of a side
func (m *Match) HasAgreed(side Side) bool {
	a, b := m.State.flags()
	if side == SideA {
		return a
	}
	return b
}

// Agree records consent of userID and moves to BothAgreed when the
// second participant agrees.
func (m *Match) Agree(userID string, now time.Time) (Side, error) {
	side, ok := m.SideOf(userID)
	if !ok {
		return 0, ErrNotParticipant
	}
	if m.HasAgreed(side) {
		return side, ErrAlreadyAgreed
	}

	p, ok := m.State.(Pending)
	if !ok {
		return side, ErrNotPending
	}
	if side == SideA {
		p.AAgreed = true
	} else {
		p.BAgreed = true
	}

	if p.AAgreed && p.BAgreed {
		m.State = BothAgreed{At: now}
	} else {
		m.State = p
	}
	return side, nil
}
