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

// maxClaimAttempts bounds how often Join re-reads candidates after
// losing a claim to a concurrent request
const maxClaimAttempts = 3

// QueueService coordinates joining a place: pairing with a waiting
// user when possible, queueing otherwise
type QueueService struct {
	queueRepo  QueueStore
	matchRepo  MatchStore
	placeRepo  PlaceStore
	views      viewBuilder
	selector   Selector
	dispatcher Dispatcher
	now        func() time.Time
}

// NewQueueService creates a new queue service
func NewQueueService(
	queueRepo QueueStore,
	matchRepo MatchStore,
	placeRepo PlaceStore,
	userRepo UserStore,
	selector Selector,
	dispatcher Dispatcher,
) *QueueService {
	if selector == nil {
		selector = RandomSelector{}
	}
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	return &QueueService{
		queueRepo:  queueRepo,
		matchRepo:  matchRepo,
		placeRepo:  placeRepo,
		views:      viewBuilder{users: userRepo, places: placeRepo},
		selector:   selector,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// JoinResult holds either the new queue entry or the created match
type JoinResult struct {
	Queue *QueueView
	Match *MatchView
}

// Matched reports whether the join produced a match
func (r *JoinResult) Matched() bool {
	return r.Match != nil
}

// Join pairs the user with a waiting user at the place, or queues the
// user when nobody eligible is waiting.
func (s *QueueService) Join(ctx context.Context, userID, placeID string) (*JoinResult, error) {
	if err := validateID("place_id", placeID); err != nil {
		return nil, err
	}

	place, err := s.placeRepo.GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	if _, err := s.queueRepo.GetActive(ctx, userID, placeID); err == nil {
		return nil, ErrAlreadyQueued
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check queue: %w", err)
	}

	open, err := s.matchRepo.HasOpenMatchAt(ctx, userID, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check matches: %w", err)
	}
	if open {
		return nil, ErrAlreadyMatched
	}

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		candidates, err := s.queueRepo.ListCandidates(ctx, placeID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list candidates: %w", err)
		}
		if len(candidates) == 0 {
			return s.enqueue(ctx, userID, place)
		}

		candidate := candidates[s.pick(len(candidates))]
		match, err := models.NewMatch(uuid.New().String(), userID, candidate.UserID, placeID, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to build match: %w", err)
		}

		err = s.matchRepo.CreateClaiming(ctx, match, candidate.ID, userID)
		switch {
		case err == nil:
			return s.matched(ctx, match, userID)
		case errors.Is(err, repository.ErrClaimLost):
			log.Debug().
				Str("user_id", userID).
				Str("place_id", placeID).
				Str("queue_id", candidate.ID).
				Int("attempt", attempt).
				Msg("Candidate claimed by another request")
			continue
		case errors.Is(err, repository.ErrOpenMatch), errors.Is(err, repository.ErrDuplicate):
			return nil, ErrAlreadyMatched
		default:
			return nil, fmt.Errorf("failed to create match: %w", err)
		}
	}

	return nil, ErrNoCandidate
}

func (s *QueueService) pick(n int) int {
	i := s.selector.Pick(n)
	if i < 0 || i >= n {
		return 0
	}
	return i
}

func (s *QueueService) matched(ctx context.Context, match *models.Match, userID string) (*JoinResult, error) {
	log.Info().
		Str("match_id", match.ID).
		Str("user_a_id", match.UserAID).
		Str("user_b_id", match.UserBID).
		Str("place_id", match.PlaceID).
		Msg("Match created")

	s.dispatcher.Dispatch(ctx, matchEvent(events.MatchCreated, match, userID, match.MatchedAt))

	view, err := s.views.match(ctx, match, userID, withholdAll)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Match: view}, nil
}

func (s *QueueService) enqueue(ctx context.Context, userID string, place *models.Place) (*JoinResult, error) {
	entry := &models.QueueEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		PlaceID:   place.ID,
		Status:    models.QueueActive,
		CreatedAt: s.now(),
	}
	if err := s.queueRepo.Enqueue(ctx, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrOpenMatch):
			return nil, ErrAlreadyMatched
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrAlreadyQueued
		}
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	log.Info().
		Str("queue_id", entry.ID).
		Str("user_id", userID).
		Str("place_id", place.ID).
		Msg("User queued")

	return &JoinResult{Queue: &QueueView{QueueEntry: entry, Place: place}}, nil
}

// ListMine returns the user's queue entries with places, newest first
func (s *QueueService) ListMine(ctx context.Context, userID string) ([]*QueueView, error) {
	entries, err := s.queueRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PlaceID)
	}
	places := map[string]*models.Place{}
	if len(ids) > 0 {
		places, err = s.placeRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load queue places: %w", err)
		}
	}

	views := make([]*QueueView, 0, len(entries))
	for _, e := range entries {
		views = append(views, &QueueView{QueueEntry: e, Place: places[e.PlaceID]})
	}
	return views, nil
}

// Withdraw deletes one of the user's queue entries
func (s *QueueService) Withdraw(ctx context.Context, queueID, userID string) (*models.QueueEntry, error) {
	if err := validateID("queue id", queueID); err != nil {
		return nil, err
	}
	entry, err := s.queueRepo.DeleteOwned(ctx, queueID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQueueNotFound
		}
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	log.Info().
		Str("queue_id", entry.ID).
		Str("user_id", userID).
		Msg("User left queue")

	return entry, nil
}
