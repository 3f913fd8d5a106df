package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/repository"
)

// QueueStore is the in-memory queue table
type QueueStore struct{ db *DB }

func (s *QueueStore) Enqueue(_ context.Context, entry *models.QueueEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.db.hasOpenMatch(entry.UserID, entry.PlaceID) {
		return repository.ErrOpenMatch
	}
	for _, q := range s.db.queues {
		if q.UserID != entry.UserID || q.PlaceID != entry.PlaceID {
			continue
		}
		if q.Status == models.QueueActive {
			return &repository.DuplicateError{Constraint: repository.QueuesUserPlaceKey}
		}
		q.Status = models.QueueActive
		q.CreatedAt = entry.CreatedAt
		q.UpdatedAt = entry.CreatedAt
		*entry = *q
		return nil
	}

	cp := *entry
	cp.Status = models.QueueActive
	cp.UpdatedAt = cp.CreatedAt
	s.db.queues[cp.ID] = &cp
	*entry = cp
	return nil
}

func (s *QueueStore) GetActive(_ context.Context, userID, placeID string) (*models.QueueEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, q := range s.db.queues {
		if q.UserID == userID && q.PlaceID == placeID && q.Status == models.QueueActive {
			cp := *q
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *QueueStore) ListByUser(_ context.Context, userID string) ([]*models.QueueEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.QueueEntry
	for _, q := range s.db.queues {
		if q.UserID == userID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *QueueStore) ListCandidates(_ context.Context, placeID, requesterID string) ([]*models.QueueEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.QueueEntry
	for _, q := range s.db.queues {
		if q.PlaceID != placeID || q.Status != models.QueueActive || q.UserID == requesterID {
			continue
		}
		if s.db.openMatchBetween(requesterID, q.UserID, placeID) {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *QueueStore) DeleteOwned(_ context.Context, id, userID string) (*models.QueueEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	q, ok := s.db.queues[id]
	if !ok || q.UserID != userID {
		return nil, repository.ErrNotFound
	}
	delete(s.db.queues, id)
	return q, nil
}

// MatchStore is the in-memory match table
type MatchStore struct{ db *DB }

func (s *MatchStore) CreateClaiming(_ context.Context, match *models.Match, candidateQueueID, requesterID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if match.UserAID >= match.UserBID {
		return fmt.Errorf("matches_canonical_order violated")
	}
	candidateID, ok := match.Counterpart(requesterID)
	if !ok {
		return fmt.Errorf("requester %s is not part of match %s", requesterID, match.ID)
	}
	if s.db.hasOpenMatch(requesterID, match.PlaceID) {
		return repository.ErrOpenMatch
	}
	if s.db.hasOpenMatch(candidateID, match.PlaceID) {
		return repository.ErrClaimLost
	}
	candidate, ok := s.db.queues[candidateQueueID]
	if !ok || candidate.Status != models.QueueActive {
		return repository.ErrClaimLost
	}
	for _, m := range s.db.matches {
		if m.UserAID == match.UserAID && m.UserBID == match.UserBID && m.PlaceID == match.PlaceID {
			return &repository.DuplicateError{Constraint: repository.MatchesPairPlace}
		}
	}

	candidate.Status = models.QueueMatched
	candidate.UpdatedAt = match.MatchedAt
	for _, q := range s.db.queues {
		if q.UserID == requesterID && q.PlaceID == match.PlaceID && q.Status == models.QueueActive {
			q.Status = models.QueueMatched
			q.UpdatedAt = match.MatchedAt
		}
	}

	cp := *match
	s.db.matches[match.ID] = &cp
	return nil
}

func (s *MatchStore) GetByID(_ context.Context, id string) (*models.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.matches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MatchStore) ListByUser(_ context.Context, userID string) ([]*models.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var out []*models.Match
	for _, m := range s.db.matches {
		if m.UserAID == userID || m.UserBID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].MatchedAt.After(out[j].MatchedAt)
	})
	return out, nil
}

func (s *MatchStore) HasOpenMatchAt(_ context.Context, userID, placeID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	return s.db.hasOpenMatch(userID, placeID), nil
}

func (s *MatchStore) SetAgreed(_ context.Context, matchID string, side models.Side, now time.Time) (*models.Match, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.matches[matchID]
	if !ok || m.Status() != models.MatchPending || m.HasAgreed(side) {
		return nil, repository.ErrStaleUpdate
	}

	userID := m.UserAID
	if side == models.SideB {
		userID = m.UserBID
	}
	if _, err := m.Agree(userID, now); err != nil {
		return nil, repository.ErrStaleUpdate
	}
	cp := *m
	return &cp, nil
}

// openMatchBetween must be called with db.mu held
func (db *DB) openMatchBetween(u1, u2, placeID string) bool {
	a, b := u1, u2
	if a > b {
		a, b = b, a
	}
	for _, m := range db.matches {
		if m.PlaceID == placeID && m.UserAID == a && m.UserBID == b && m.Status() != models.MatchRejected {
			return true
		}
	}
	return false
}

// hasOpenMatch must be called with db.mu held
func (db *DB) hasOpenMatch(userID, placeID string) bool {
	for _, m := range db.matches {
		if m.PlaceID == placeID && m.Status() != models.MatchRejected &&
			(m.UserAID == userID || m.UserBID == userID) {
			return true
		}
	}
	return false
}
