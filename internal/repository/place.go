package repository

import (
	"context"
	"errors"
	"fmt"

	"meetup-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const placeColumns = `id, title, addr, starts_at, ends_at, lat, lng, category, image, created_at, updated_at`

// PlaceRepository handles database operations for places
type PlaceRepository struct {
	db *pgxpool.Pool
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db *pgxpool.Pool) *PlaceRepository {
	return &PlaceRepository{db: db}
}

// CreateMany inserts places in one transaction
func (r *PlaceRepository) CreateMany(ctx context.Context, places []*models.Place) error {
	query := `
		INSERT INTO places (` + placeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, place := range places {
			_, err := tx.Exec(ctx, query,
				place.ID, place.Title, place.Addr, place.StartsAt, place.EndsAt,
				place.Lat, place.Lng, place.Category, place.Image,
				place.CreatedAt, place.UpdatedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return duplicateFrom(err)
				}
				return fmt.Errorf("failed to create place %q: %w", place.Title, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a place by ID
func (r *PlaceRepository) GetByID(ctx context.Context, id string) (*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE id = $1`
	place, err := scanPlace(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return place, nil
}

// GetByIDs retrieves several places keyed by ID
func (r *PlaceRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE id = ANY($1::uuid[])`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get places: %w", err)
	}
	defer rows.Close()

	places := make(map[string]*models.Place, len(ids))
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places[place.ID] = place
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}
	return places, nil
}

// List returns all places ordered by start time
func (r *PlaceRepository) List(ctx context.Context) ([]*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places ORDER BY starts_at, id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer rows.Close()

	var places []*models.Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}
	return places, nil
}

func scanPlace(row scanner) (*models.Place, error) {
	var place models.Place
	err := row.Scan(
		&place.ID, &place.Title, &place.Addr, &place.StartsAt, &place.EndsAt,
		&place.Lat, &place.Lng, &place.Category, &place.Image,
		&place.CreatedAt, &place.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &place, nil
}
