package services

import (
	"context"
	"time"

	"meetup-backend/internal/events"
	"meetup-backend/internal/models"
)

// UserStore persists users. Implemented by repository.UserRepository
// and memory.UserStore.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// PlaceStore persists places
type PlaceStore interface {
	// CreateMany inserts all places or none of them
	CreateMany(ctx context.Context, places []*models.Place) error
	GetByID(ctx context.Context, id string) (*models.Place, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Place, error)
	List(ctx context.Context) ([]*models.Place, error)
}

// QueueStore persists queue entries
type QueueStore interface {
	Enqueue(ctx context.Context, entry *models.QueueEntry) error
	GetActive(ctx context.Context, userID, placeID string) (*models.QueueEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*models.QueueEntry, error)
	ListCandidates(ctx context.Context, placeID, requesterID string) ([]*models.QueueEntry, error)
	DeleteOwned(ctx context.Context, id, userID string) (*models.QueueEntry, error)
}

// MatchStore persists matches. CreateClaiming and SetAgreed must be
// atomic conditional writes.
type MatchStore interface {
	CreateClaiming(ctx context.Context, match *models.Match, candidateQueueID, requesterID string) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Match, error)
	HasOpenMatchAt(ctx context.Context, userID, placeID string) (bool, error)
	SetAgreed(ctx context.Context, matchID string, side models.Side, now time.Time) (*models.Match, error)
}

// Dispatcher receives match lifecycle events after they are committed
type Dispatcher interface {
	Dispatch(ctx context.Context, event events.Event)
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, events.Event) {}
