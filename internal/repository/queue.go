package repository

import (
	"context"
	"errors"
	"fmt"

	"meetup-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queueColumns = `id, user_id, place_id, status, created_at, updated_at`

// QueueRepository handles database operations for queue entries
type QueueRepository struct {
	db *pgxpool.Pool
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts an active entry for (user, place). An existing entry
// that is not active is reactivated and moved to the back of the line;
// an existing active entry makes the call fail with a DuplicateError,
// and a user with an open match at the place gets ErrOpenMatch.
func (r *QueueRepository) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	query := `
		INSERT INTO queues (id, user_id, place_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, $4)
		ON CONFLICT (user_id, place_id) DO UPDATE
			SET status = 'active', created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at
			WHERE queues.status <> 'active'
		RETURNING ` + queueColumns

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockUsersAtPlace(ctx, tx, entry.PlaceID, entry.UserID); err != nil {
			return err
		}
		if open, err := hasOpenMatch(ctx, tx, entry.UserID, entry.PlaceID); err != nil {
			return err
		} else if open {
			return ErrOpenMatch
		}

		stored, err := scanQueueEntry(tx.QueryRow(ctx, query,
			entry.ID, entry.UserID, entry.PlaceID, entry.CreatedAt,
		))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return &DuplicateError{Constraint: QueuesUserPlaceKey}
			}
			return fmt.Errorf("failed to enqueue: %w", err)
		}
		*entry = *stored
		return nil
	})
}

// GetActive returns the active entry of a user at a place
func (r *QueueRepository) GetActive(ctx context.Context, userID, placeID string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queues
		WHERE user_id = $1 AND place_id = $2 AND status = 'active'`
	entry, err := scanQueueEntry(r.db.QueryRow(ctx, query, userID, placeID))
	if err != nil {
		return nil, fmt.Errorf("failed to get active queue entry: %w", err)
	}
	return entry, nil
}

// ListByUser returns all entries of a user, newest first
func (r *QueueRepository) ListByUser(ctx context.Context, userID string) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queues WHERE user_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, userID)
}

// ListCandidates returns active entries at a place that the requester
// could be paired with, oldest first. The requester and anyone already
// in a non-rejected match with the requester at that place are excluded.
func (r *QueueRepository) ListCandidates(ctx context.Context, placeID, requesterID string) ([]*models.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queues q
		WHERE q.place_id = $1
			AND q.status = 'active'
			AND q.user_id <> $2
			AND NOT EXISTS (
				SELECT 1 FROM matches m
				WHERE m.place_id = q.place_id
					AND m.status <> 'rejected'
					AND ((m.user_a_id = $2 AND m.user_b_id = q.user_id)
						OR (m.user_b_id = $2 AND m.user_a_id = q.user_id))
			)
		ORDER BY q.created_at, q.id
	`
	return r.list(ctx, query, placeID, requesterID)
}

// DeleteOwned deletes an entry if it belongs to userID and returns it
func (r *QueueRepository) DeleteOwned(ctx context.Context, id, userID string) (*models.QueueEntry, error) {
	query := `DELETE FROM queues WHERE id = $1 AND user_id = $2 RETURNING ` + queueColumns
	entry, err := scanQueueEntry(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return entry, nil
}

func (r *QueueRepository) list(ctx context.Context, query string, args ...any) ([]*models.QueueEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}
	return entries, nil
}

func scanQueueEntry(row scanner) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	var status string
	err := row.Scan(&entry.ID, &entry.UserID, &entry.PlaceID, &status, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	entry.Status = models.QueueStatus(status)
	return &entry, nil
}
