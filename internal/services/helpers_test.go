package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"meetup-backend/internal/events"
	"meetup-backend/internal/models"
	"meetup-backend/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Dispatch(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db     *memory.DB
	queue  *QueueService
	match  *MatchService
	events *recorder
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memory.New()
	rec := &recorder{}
	env := &testEnv{
		db:     db,
		events: rec,
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.queue = NewQueueService(db.Queues(), db.Matches(), db.Places(), db.Users(), FirstSelector{}, rec)
	env.match = NewMatchService(db.Matches(), db.Users(), db.Places(), rec)

	// strictly increasing timestamps keep "oldest first" deterministic
	var mu sync.Mutex
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		env.clock = env.clock.Add(time.Second)
		return env.clock
	}
	env.queue.now = tick
	env.match.now = tick
	return env
}

func (e *testEnv) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		ID:            uuid.New().String(),
		Username:      username,
		UserID:        username + "_id",
		PasswordHash:  "x",
		Nationality:   "KR",
		Gender:        models.GenderFemale,
		Age:           27,
		ContactMethod: "kakao:" + username,
	}
	require.NoError(t, e.db.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) addPlace(t *testing.T, title string) *models.Place {
	t.Helper()
	p := &models.Place{
		ID:       uuid.New().String(),
		Title:    title,
		Addr:     "1 Main St",
		StartsAt: e.clock.Add(24 * time.Hour),
		Lat:      37.5,
		Lng:      127.0,
		Category: "music",
	}
	require.NoError(t, e.db.Places().CreateMany(context.Background(), []*models.Place{p}))
	return p
}

// pair queues a then matches b with a and returns the match ID
func (e *testEnv) pair(t *testing.T, a, b *models.User, place *models.Place) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.queue.Join(ctx, a.ID, place.ID)
	require.NoError(t, err, "join %s", a.Username)
	res, err := e.queue.Join(ctx, b.ID, place.ID)
	require.NoError(t, err, "join %s", b.Username)
	require.True(t, res.Matched(), "%s should have been matched", b.Username)
	return res.Match.ID
}
