package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"meetup-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against the database named by TEST_DATABASE_URL and
// truncate every table first. They are skipped when it is unset.

type pgEnv struct {
	pool    *pgxpool.Pool
	users   *UserRepository
	places  *PlaceRepository
	queues  *QueueRepository
	matches *MatchRepository
	clock   time.Time
}

func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE matches, queues, places, users CASCADE`)
	require.NoError(t, err)

	return &pgEnv{
		pool:    pool,
		users:   NewUserRepository(pool),
		places:  NewPlaceRepository(pool),
		queues:  NewQueueRepository(pool),
		matches: NewMatchRepository(pool),
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (e *pgEnv) tick() time.Time {
	e.clock = e.clock.Add(time.Second)
	return e.clock
}

func (e *pgEnv) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	now := e.tick()
	u := &models.User{
		ID:            uuid.New().String(),
		Username:      name,
		UserID:        name + "_id",
		PasswordHash:  "x",
		Nationality:   "KR",
		Gender:        models.GenderMale,
		Age:           30,
		ContactMethod: "kakao:" + name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *pgEnv) addPlace(t *testing.T, title string) *models.Place {
	t.Helper()
	now := e.tick()
	p := &models.Place{
		ID:        uuid.New().String(),
		Title:     title,
		Addr:      "1 Main St",
		StartsAt:  now.Add(24 * time.Hour),
		Lat:       37.5,
		Lng:       127,
		Category:  "music",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.places.CreateMany(context.Background(), []*models.Place{p}))
	return p
}

func (e *pgEnv) enqueue(t *testing.T, u *models.User, p *models.Place) *models.QueueEntry {
	t.Helper()
	entry := &models.QueueEntry{ID: uuid.New().String(), UserID: u.ID, PlaceID: p.ID, CreatedAt: e.tick()}
	require.NoError(t, e.queues.Enqueue(context.Background(), entry))
	return entry
}

func (e *pgEnv) newMatch(t *testing.T, requester, candidate *models.User, p *models.Place) *models.Match {
	t.Helper()
	m, err := models.NewMatch(uuid.New().String(), requester.ID, candidate.ID, p.ID, e.tick())
	require.NoError(t, err)
	return m
}

func (e *pgEnv) countMatches(t *testing.T, placeID string) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM matches WHERE place_id = $1`, placeID).Scan(&n))
	return n
}

func TestPgConcurrentClaimsOnOneEntry(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	waiting := e.addUser(t, "waiting")
	entry := e.enqueue(t, waiting, place)

	requesters := []*models.User{e.addUser(t, "r1"), e.addUser(t, "r2"), e.addUser(t, "r3")}
	matches := make([]*models.Match, len(requesters))
	for i, r := range requesters {
		matches[i] = e.newMatch(t, r, waiting, place)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(requesters))
	for i, r := range requesters {
		wg.Add(1)
		go func(i int, r *models.User) {
			defer wg.Done()
			errs[i] = e.matches.CreateClaiming(ctx, matches[i], entry.ID, r.ID)
		}(i, r)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrClaimLost)
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, e.countMatches(t, place.ID))

	_, err := e.queues.GetActive(ctx, waiting.ID, place.ID)
	assert.ErrorIs(t, err, ErrNotFound, "claimed entry must not stay active")
}

func TestPgRequesterCannotOpenTwoMatches(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	a, b := e.addUser(t, "a"), e.addUser(t, "b")
	qa, qb := e.enqueue(t, a, place), e.enqueue(t, b, place)
	x := e.addUser(t, "x")

	ma, mb := e.newMatch(t, x, a, place), e.newMatch(t, x, b, place)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() { defer wg.Done(); errA = e.matches.CreateClaiming(ctx, ma, qa.ID, x.ID) }()
	go func() { defer wg.Done(); errB = e.matches.CreateClaiming(ctx, mb, qb.ID, x.ID) }()
	wg.Wait()

	if errA == nil {
		assert.ErrorIs(t, errB, ErrOpenMatch)
	} else {
		assert.ErrorIs(t, errA, ErrOpenMatch)
		assert.NoError(t, errB)
	}
	assert.Equal(t, 1, e.countMatches(t, place.ID))

	// the candidate that was not taken is still waiting
	left := 0
	for _, u := range []*models.User{a, b} {
		if _, err := e.queues.GetActive(ctx, u.ID, place.ID); err == nil {
			left++
		}
	}
	assert.Equal(t, 1, left)

	late := &models.QueueEntry{ID: uuid.New().String(), UserID: x.ID, PlaceID: place.ID, CreatedAt: e.tick()}
	assert.ErrorIs(t, e.queues.Enqueue(ctx, late), ErrOpenMatch)
}

func TestPgSetAgreed(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	a, b := e.addUser(t, "a"), e.addUser(t, "b")
	entry := e.enqueue(t, a, place)
	m := e.newMatch(t, b, a, place)
	require.NoError(t, e.matches.CreateClaiming(ctx, m, entry.ID, b.ID))

	first, err := e.matches.SetAgreed(ctx, m.ID, models.SideA, e.tick())
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, first.Status())
	assert.True(t, first.AAgreed())
	assert.Nil(t, first.ContactSharedAt())

	_, err = e.matches.SetAgreed(ctx, m.ID, models.SideA, e.tick())
	assert.ErrorIs(t, err, ErrStaleUpdate, "same side twice")

	sharedAt := e.tick()
	second, err := e.matches.SetAgreed(ctx, m.ID, models.SideB, sharedAt)
	require.NoError(t, err)
	assert.Equal(t, models.MatchBothAgreed, second.Status())
	require.NotNil(t, second.ContactSharedAt())
	assert.True(t, sharedAt.Equal(*second.ContactSharedAt()))

	_, err = e.matches.SetAgreed(ctx, m.ID, models.SideB, e.tick())
	assert.ErrorIs(t, err, ErrStaleUpdate, "match is no longer pending")

	_, err = e.matches.SetAgreed(ctx, uuid.New().String(), models.SideA, e.tick())
	assert.ErrorIs(t, err, ErrStaleUpdate)
}

func TestPgEnqueueConflicts(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	a, b := e.addUser(t, "a"), e.addUser(t, "b")
	first := e.enqueue(t, a, place)

	dup := &models.QueueEntry{ID: uuid.New().String(), UserID: a.ID, PlaceID: place.ID, CreatedAt: e.tick()}
	err := e.queues.Enqueue(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, QueuesUserPlaceKey, ViolatedConstraint(err))

	m := e.newMatch(t, b, a, place)
	require.NoError(t, e.matches.CreateClaiming(ctx, m, first.ID, b.ID))

	blocked := &models.QueueEntry{ID: uuid.New().String(), UserID: a.ID, PlaceID: place.ID, CreatedAt: e.tick()}
	assert.ErrorIs(t, e.queues.Enqueue(ctx, blocked), ErrOpenMatch)

	_, err = e.pool.Exec(ctx, `UPDATE matches SET status = 'rejected' WHERE id = $1`, m.ID)
	require.NoError(t, err)

	again := &models.QueueEntry{ID: uuid.New().String(), UserID: a.ID, PlaceID: place.ID, CreatedAt: e.tick()}
	require.NoError(t, e.queues.Enqueue(ctx, again))
	assert.Equal(t, first.ID, again.ID, "reactivation keeps the row")
	assert.Equal(t, models.QueueActive, again.Status)
	assert.True(t, again.CreatedAt.After(first.CreatedAt), "reactivated entry moves to the back")
}

func TestPgListCandidatesSkipsOpenPairs(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	x, a, b := e.addUser(t, "x"), e.addUser(t, "a"), e.addUser(t, "b")
	e.enqueue(t, a, place)
	e.enqueue(t, b, place)
	e.enqueue(t, x, place)

	// a pair match inserted directly leaves both queue entries active
	m := e.newMatch(t, x, a, place)
	_, err := e.pool.Exec(ctx, `
		INSERT INTO matches (id, user_a_id, user_b_id, place_id, status, matched_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $5)
	`, m.ID, m.UserAID, m.UserBID, m.PlaceID, m.MatchedAt)
	require.NoError(t, err)

	candidates, err := e.queues.ListCandidates(ctx, place.ID, x.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, b.ID, candidates[0].UserID)

	_, err = e.pool.Exec(ctx, `UPDATE matches SET status = 'rejected' WHERE id = $1`, m.ID)
	require.NoError(t, err)

	candidates, err = e.queues.ListCandidates(ctx, place.ID, x.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, a.ID, candidates[0].UserID, "oldest first")
	assert.Equal(t, b.ID, candidates[1].UserID)
}

func TestPgCanonicalOrderIsEnforced(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	place := e.addPlace(t, "Jazz night")
	a, b := e.addUser(t, "a"), e.addUser(t, "b")
	entry := e.enqueue(t, a, place)

	m := e.newMatch(t, b, a, place)
	m.UserAID, m.UserBID = m.UserBID, m.UserAID

	err := e.matches.CreateClaiming(ctx, m, entry.ID, b.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "matches_canonical_order", pgErr.ConstraintName)

	_, err = e.queues.GetActive(ctx, a.ID, place.ID)
	assert.NoError(t, err, "failed insert must roll back the claim")
	assert.Zero(t, e.countMatches(t, place.ID))
}

func TestPgUserConstraints(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	alice := e.addUser(t, "alice")

	dup := *alice
	dup.ID = uuid.New().String()
	dup.Username = "alice2"
	err := e.users.Create(ctx, &dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, UsersUserIDKey, ViolatedConstraint(err))

	dup.ID = uuid.New().String()
	dup.Username = "alice"
	dup.UserID = "other_id"
	err = e.users.Create(ctx, &dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, UsersUsernameKey, ViolatedConstraint(err))
}

func TestPgCreateManyRollsBack(t *testing.T) {
	e := newPgEnv(t)
	ctx := context.Background()
	existing := e.addPlace(t, "Existing")

	now := e.tick()
	batch := []*models.Place{
		{ID: uuid.New().String(), Title: "New", Addr: "1 Main St", StartsAt: now, Category: "music", CreatedAt: now, UpdatedAt: now},
		{ID: existing.ID, Title: "Clash", Addr: "2 Main St", StartsAt: now, Category: "music", CreatedAt: now, UpdatedAt: now},
	}
	assert.ErrorIs(t, e.places.CreateMany(ctx, batch), ErrDuplicate)

	places, err := e.places.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, existing.ID, places[0].ID)
}
