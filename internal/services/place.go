package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/repository"

	"github.com/google/uuid"
)

// ImageStorage issues upload URLs for place images
type ImageStorage interface {
	PresignUpload(ctx context.Context, key, contentType string) (uploadURL, publicURL string, err error)
}

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// PlaceService handles place reads, seeding and image uploads
type PlaceService struct {
	placeRepo PlaceStore
	images    ImageStorage
	uploadTTL time.Duration
	now       func() time.Time
}

// NewPlaceService creates a new place service. images may be nil, which
// disables uploads.
func NewPlaceService(placeRepo PlaceStore, images ImageStorage, uploadTTL time.Duration) *PlaceService {
	return &PlaceService{
		placeRepo: placeRepo,
		images:    images,
		uploadTTL: uploadTTL,
		now:       time.Now,
	}
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

// List returns all places
func (s *PlaceService) List(ctx context.Context) ([]*models.Place, error) {
	places, err := s.placeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	if places == nil {
		places = []*models.Place{}
	}
	return places, nil
}

// Get returns a place by ID
func (s *PlaceService) Get(ctx context.Context, placeID string) (*models.Place, error) {
	if err := validateID("place id", placeID); err != nil {
		return nil, err
	}
	place, err := s.placeRepo.GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return place, nil
}

// ValidatePlace checks required fields and coordinate ranges
func ValidatePlace(p *models.Place) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Addr = strings.TrimSpace(p.Addr)
	p.Category = strings.TrimSpace(p.Category)

	switch {
	case p.Title == "":
		return invalidInput("title is required")
	case p.Addr == "":
		return invalidInput("addr is required")
	case p.Category == "":
		return invalidInput("category is required")
	case p.StartsAt.IsZero():
		return invalidInput("starts_at is required")
	case p.EndsAt != nil && p.EndsAt.Before(p.StartsAt):
		return invalidInput("ends_at must not be before starts_at")
	case p.Lat < -90 || p.Lat > 90:
		return invalidInput("lat must be between -90 and 90")
	case p.Lng < -180 || p.Lng > 180:
		return invalidInput("lng must be between -180 and 180")
	}
	return nil
}

// Create validates and stores a single place
func (s *PlaceService) Create(ctx context.Context, place *models.Place) error {
	return s.CreateMany(ctx, []*models.Place{place})
}

// CreateMany validates every place, then stores them in one write.
// Nothing is stored when any place is invalid or the write fails.
func (s *PlaceService) CreateMany(ctx context.Context, places []*models.Place) error {
	for i, place := range places {
		if err := ValidatePlace(place); err != nil {
			return fmt.Errorf("place %d (%q): %w", i+1, place.Title, err)
		}
	}

	now := s.now()
	for _, place := range places {
		if place.ID == "" {
			place.ID = uuid.New().String()
		}
		place.CreatedAt = now
		place.UpdatedAt = now
	}

	if err := s.placeRepo.CreateMany(ctx, places); err != nil {
		return fmt.Errorf("failed to create places: %w", err)
	}
	return nil
}

// UploadImage returns a pre-signed URL for a new place image and the
// URL it will be served from. The place itself is not changed; images
// are attached to places through the seed file.
func (s *PlaceService) UploadImage(ctx context.Context, placeID, contentType string) (*UploadResponse, error) {
	if s.images == nil {
		return nil, ErrUploadDisabled
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, invalidInput("unsupported content type %q", contentType)
	}

	place, err := s.Get(ctx, placeID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("places/%s/%s.%s", place.ID, uuid.New().String(), ext)
	uploadURL, imageURL, err := s.images.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, err
	}

	return &UploadResponse{
		UploadURL: uploadURL,
		ImageURL:  imageURL,
		ExpiresIn: int(s.uploadTTL / time.Second),
	}, nil
}
