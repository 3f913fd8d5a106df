// Package memory provides in-process stores with the same semantics as the
// Postgres repositories: unique constraints, conditional updates and the
// atomic claim-and-create of a match. It backs the "memory" database
// driver for local runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/repository"
)

// DB holds every table behind one lock
type DB struct {
	mu      sync.Mutex
	users   map[string]*models.User
	places  map[string]*models.Place
	queues  map[string]*models.QueueEntry
	matches map[string]*models.Match
}

// New creates an empty database
func New() *DB {
	return &DB{
		users:   make(map[string]*models.User),
		places:  make(map[string]*models.Place),
		queues:  make(map[string]*models.QueueEntry),
		matches: make(map[string]*models.Match),
	}
}

// Users returns the user store
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Places returns the place store
func (db *DB) Places() *PlaceStore { return &PlaceStore{db: db} }

// Queues returns the queue store
func (db *DB) Queues() *QueueStore { return &QueueStore{db: db} }

// Matches returns the match store
func (db *DB) Matches() *MatchStore { return &MatchStore{db: db} }

// UserStore is the in-memory user table
type UserStore struct{ db *DB }

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.users {
		if u.Username == user.Username {
			return &repository.DuplicateError{Constraint: repository.UsersUsernameKey}
		}
		if u.UserID == user.UserID {
			return &repository.DuplicateError{Constraint: repository.UsersUserIDKey}
		}
	}
	if _, ok := s.db.users[user.ID]; ok {
		return &repository.DuplicateError{Constraint: "users_pkey"}
	}
	cp := *user
	s.db.users[user.ID] = &cp
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *UserStore) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.UserID == externalID })
}

func (s *UserStore) find(pred func(*models.User) bool) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.users {
		if pred(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.db.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *UserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	u.UpdatedAt = time.Now()
	return nil
}

// PlaceStore is the in-memory place table
type PlaceStore struct{ db *DB }

// CreateMany inserts all places or none of them
func (s *PlaceStore) CreateMany(_ context.Context, places []*models.Place) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	seen := make(map[string]bool, len(places))
	for _, place := range places {
		if _, ok := s.db.places[place.ID]; ok || seen[place.ID] {
			return &repository.DuplicateError{Constraint: "places_pkey"}
		}
		seen[place.ID] = true
	}
	for _, place := range places {
		cp := *place
		s.db.places[place.ID] = &cp
	}
	return nil
}

func (s *PlaceStore) GetByID(_ context.Context, id string) (*models.Place, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.places[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PlaceStore) GetByIDs(_ context.Context, ids []string) (map[string]*models.Place, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make(map[string]*models.Place, len(ids))
	for _, id := range ids {
		if p, ok := s.db.places[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *PlaceStore) List(_ context.Context) ([]*models.Place, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]*models.Place, 0, len(s.db.places))
	for _, p := range s.db.places {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}
