package services

import (
	"context"
	"testing"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	keys []string
}

func (f *fakeImages) PresignUpload(_ context.Context, key, contentType string) (string, string, error) {
	f.keys = append(f.keys, key)
	return "https://upload.test/" + key + "?sig=1", "https://cdn.test/" + key, nil
}

func TestPlaceCreateValidation(t *testing.T) {
	starts := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	before := starts.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(p *models.Place)
	}{
		{"no title", func(p *models.Place) { p.Title = " " }},
		{"no addr", func(p *models.Place) { p.Addr = "" }},
		{"no category", func(p *models.Place) { p.Category = "" }},
		{"no start", func(p *models.Place) { p.StartsAt = time.Time{} }},
		{"ends before start", func(p *models.Place) { p.EndsAt = &before }},
		{"lat out of range", func(p *models.Place) { p.Lat = 91 }},
		{"lng out of range", func(p *models.Place) { p.Lng = -181 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewPlaceService(memory.New().Places(), nil, 0)
			p := &models.Place{Title: "Jazz", Addr: "1 Main St", StartsAt: starts, Lat: 37.5, Lng: 127, Category: "music"}
			tt.mutate(p)
			assert.ErrorIs(t, svc.Create(context.Background(), p), ErrInvalidInput)
		})
	}
}

func TestCreateManyStoresNothingOnInvalidPlace(t *testing.T) {
	svc := NewPlaceService(memory.New().Places(), nil, 0)
	ctx := context.Background()

	places := []*models.Place{
		{Title: "Jazz", Addr: "1 Main St", StartsAt: time.Now(), Category: "music"},
		{Title: "Broken", Addr: "", StartsAt: time.Now(), Category: "music"},
	}
	err := svc.CreateMany(ctx, places)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "place 2")

	stored, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPlaceListAndGet(t *testing.T) {
	svc := NewPlaceService(memory.New().Places(), nil, 0)
	ctx := context.Background()

	places, err := svc.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, places)
	assert.Empty(t, places)

	p := &models.Place{Title: "Jazz", Addr: "1 Main St", StartsAt: time.Now(), Category: "music"}
	require.NoError(t, svc.Create(ctx, p))
	require.NotEmpty(t, p.ID, "Create should assign an ID")

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz", got.Title)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Get(ctx, "0b1c3c39-2b51-4a6c-9a8b-3b8c1d7e4f22")
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func TestUploadImageLeavesPlaceUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Places()
	images := &fakeImages{}
	svc := NewPlaceService(store, images, 5*time.Minute)

	seeded := "https://cdn.test/seeded.png"
	p := &models.Place{Title: "Jazz", Addr: "1 Main St", StartsAt: time.Now(), Category: "music", Image: &seeded}
	require.NoError(t, svc.Create(ctx, p))

	res, err := svc.UploadImage(ctx, p.ID, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 300, res.ExpiresIn)
	require.Len(t, images.keys, 1)
	assert.Regexp(t, `^places/`+p.ID+`/[0-9a-f-]+\.png$`, images.keys[0])
	assert.Equal(t, "https://cdn.test/"+images.keys[0], res.ImageURL)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, seeded, *got.Image, "issuing an upload URL must not rewrite the place image")

	_, err = svc.UploadImage(ctx, p.ID, "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidInput)

	disabled := NewPlaceService(store, nil, 0)
	_, err = disabled.UploadImage(ctx, p.ID, "image/png")
	assert.ErrorIs(t, err, ErrUploadDisabled)
}
