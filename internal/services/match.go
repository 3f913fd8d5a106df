package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetup-backend/internal/events"
	"meetup-backend/internal/models"
	"meetup-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MatchService handles consent and the read paths of matches
type MatchService struct {
	matchRepo  MatchStore
	userRepo   UserStore
	views      viewBuilder
	dispatcher Dispatcher
	now        func() time.Time
}

// NewMatchService creates a new match service
func NewMatchService(matchRepo MatchStore, userRepo UserStore, placeRepo PlaceStore, dispatcher Dispatcher) *MatchService {
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	return &MatchService{
		matchRepo:  matchRepo,
		userRepo:   userRepo,
		views:      viewBuilder{users: userRepo, places: placeRepo},
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// AgreeResult is the outcome of a consent action. Contact is set once
// both participants agreed.
type AgreeResult struct {
	Match   *MatchView      `json:"match"`
	Contact *models.Contact `json:"contact,omitempty"`
}

// ListMine returns the user's matches, newest first, with the
// counterpart's contact method redacted until both agreed
func (s *MatchService) ListMine(ctx context.Context, userID string) ([]*MatchView, error) {
	matches, err := s.matchRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return s.views.matches(ctx, matches, userID, viewerPolicy)
}

// Get returns one match for a participant
func (s *MatchService) Get(ctx context.Context, matchID, userID string) (*MatchView, error) {
	match, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	return s.views.match(ctx, match, userID, viewerPolicy)
}

// Agree records the user's consent. The flag is set by a conditional
// write, so a second agree by the same user fails even when both calls
// race.
func (s *MatchService) Agree(ctx context.Context, matchID, userID string) (*AgreeResult, error) {
	match, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	side, err := match.Agree(userID, now)
	if err != nil {
		return nil, translateConsentError(err)
	}

	updated, err := s.matchRepo.SetAgreed(ctx, match.ID, side, now)
	if err != nil {
		if !errors.Is(err, repository.ErrStaleUpdate) {
			return nil, fmt.Errorf("failed to set consent: %w", err)
		}
		// Someone changed the row since we read it; classify from the current state
		current, gerr := s.matchRepo.GetByID(ctx, match.ID)
		if gerr != nil {
			return nil, fmt.Errorf("failed to reload match: %w", gerr)
		}
		if current.HasAgreed(side) {
			return nil, ErrAlreadyAgreed
		}
		return nil, ErrMatchClosed
	}

	log.Info().
		Str("match_id", updated.ID).
		Str("user_id", userID).
		Str("side", side.String()).
		Str("status", string(updated.Status())).
		Msg("Match consent recorded")

	s.dispatcher.Dispatch(ctx, matchEvent(events.MatchAgreed, updated, userID, now))
	if updated.Status() == models.MatchBothAgreed {
		s.dispatcher.Dispatch(ctx, matchEvent(events.ContactShared, updated, userID, now))
	}

	view, err := s.views.match(ctx, updated, userID, viewerPolicy)
	if err != nil {
		return nil, err
	}
	result := &AgreeResult{Match: view}

	if updated.Status() == models.MatchBothAgreed {
		contact, err := s.counterpartContact(ctx, updated, userID)
		if err != nil {
			return nil, err
		}
		result.Contact = contact
	}
	return result, nil
}

// Contact returns the counterpart's contact fields once both agreed
func (s *MatchService) Contact(ctx context.Context, matchID, userID string) (*models.Contact, error) {
	match, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if match.Status() != models.MatchBothAgreed {
		return nil, ErrNotAgreedYet
	}
	return s.counterpartContact(ctx, match, userID)
}

func (s *MatchService) participantMatch(ctx context.Context, matchID, userID string) (*models.Match, error) {
	if err := validateID("match id", matchID); err != nil {
		return nil, err
	}
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if _, ok := match.SideOf(userID); !ok {
		return nil, ErrNotParticipant
	}
	return match, nil
}

func (s *MatchService) counterpartContact(ctx context.Context, match *models.Match, userID string) (*models.Contact, error) {
	otherID, _ := match.Counterpart(userID)
	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get counterpart: %w", err)
	}
	contact := other.Contact()
	return &contact, nil
}

func translateConsentError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotParticipant):
		return ErrNotParticipant
	case errors.Is(err, models.ErrAlreadyAgreed):
		return ErrAlreadyAgreed
	case errors.Is(err, models.ErrNotPending):
		return ErrMatchClosed
	default:
		return fmt.Errorf("failed to apply consent: %w", err)
	}
}

func matchEvent(typ events.Type, m *models.Match, actorID string, at time.Time) events.Event {
	return events.Event{
		Type:       typ,
		MatchID:    m.ID,
		PlaceID:    m.PlaceID,
		UserAID:    m.UserAID,
		UserBID:    m.UserBID,
		ActorID:    actorID,
		OccurredAt: at,
	}
}

func validateID(name, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalidInput("%s is not a valid id", name)
	}
	return nil
}
