package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"meetup-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const matchColumns = `id, user_a_id, user_b_id, place_id, status, user_a_agreed, user_b_agreed,
	matched_at, contact_shared_at`

const openMatchQuery = `
	SELECT EXISTS(
		SELECT 1 FROM matches
		WHERE place_id = $2 AND status <> 'rejected'
			AND (user_a_id = $1 OR user_b_id = $1)
	)
`

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MatchRepository handles database operations for matches
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// lockUsersAtPlace serializes writes that change whether a user is
// queued or matched at a place. Locks are taken in a fixed order and
// released at commit.
func lockUsersAtPlace(ctx context.Context, tx pgx.Tx, placeID string, userIDs ...string) error {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id+":"+placeID,
		); err != nil {
			return fmt.Errorf("failed to lock %s at place: %w", id, err)
		}
	}
	return nil
}

func hasOpenMatch(ctx context.Context, q querier, userID, placeID string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, openMatchQuery, userID, placeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open match: %w", err)
	}
	return exists, nil
}

// CreateClaiming claims the candidate's queue entry and inserts the match
// in one transaction. Both users are locked at the place first, then:
// a requester who already has an open match there gets ErrOpenMatch, and
// a candidate whose entry is no longer active (or who got matched
// meanwhile) gets ErrClaimLost. Nothing is written in either case.
func (r *MatchRepository) CreateClaiming(ctx context.Context, match *models.Match, candidateQueueID, requesterID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockUsersAtPlace(ctx, tx, match.PlaceID, match.UserAID, match.UserBID); err != nil {
			return err
		}

		candidateID, ok := match.Counterpart(requesterID)
		if !ok {
			return fmt.Errorf("requester %s is not part of match %s", requesterID, match.ID)
		}
		if open, err := hasOpenMatch(ctx, tx, requesterID, match.PlaceID); err != nil {
			return err
		} else if open {
			return ErrOpenMatch
		}
		if open, err := hasOpenMatch(ctx, tx, candidateID, match.PlaceID); err != nil {
			return err
		} else if open {
			return ErrClaimLost
		}

		claimed, err := tx.Exec(ctx, `
			UPDATE queues SET status = 'matched', updated_at = $2
			WHERE id = $1 AND status = 'active'
		`, candidateQueueID, match.MatchedAt)
		if err != nil {
			return fmt.Errorf("failed to claim queue entry: %w", err)
		}
		if claimed.RowsAffected() == 0 {
			return ErrClaimLost
		}

		// The requester may have been queued by an earlier join
		if _, err := tx.Exec(ctx, `
			UPDATE queues SET status = 'matched', updated_at = $3
			WHERE user_id = $1 AND place_id = $2 AND status = 'active'
		`, requesterID, match.PlaceID, match.MatchedAt); err != nil {
			return fmt.Errorf("failed to retire requester queue entry: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO matches (id, user_a_id, user_b_id, place_id, status,
				user_a_agreed, user_b_agreed, matched_at, contact_shared_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $8)
		`, match.ID, match.UserAID, match.UserBID, match.PlaceID, string(match.Status()),
			match.AAgreed(), match.BAgreed(), match.MatchedAt, match.ContactSharedAt())
		if err != nil {
			if isUniqueViolation(err) {
				return duplicateFrom(err)
			}
			return fmt.Errorf("failed to create match: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := scanMatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// ListByUser returns every match the user takes part in, newest first
func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY matched_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}
	return matches, nil
}

// HasOpenMatchAt checks if the user has a non-rejected match at a place
func (r *MatchRepository) HasOpenMatchAt(ctx context.Context, userID, placeID string) (bool, error) {
	return hasOpenMatch(ctx, r.db, userID, placeID)
}

// SetAgreed sets one consent flag if it is still false and the match is
// pending. When the other flag is already set the same statement moves
// the match to both_agreed and stamps contact_shared_at.
func (r *MatchRepository) SetAgreed(ctx context.Context, matchID string, side models.Side, now time.Time) (*models.Match, error) {
	flag, other := "user_a_agreed", "user_b_agreed"
	if side == models.SideB {
		flag, other = other, flag
	}

	query := fmt.Sprintf(`
		UPDATE matches SET
			%[1]s = TRUE,
			status = CASE WHEN %[2]s THEN 'both_agreed' ELSE status END,
			contact_shared_at = CASE WHEN %[2]s THEN $2 ELSE contact_shared_at END,
			updated_at = $2
		WHERE id = $1 AND status = 'pending' AND %[1]s = FALSE
		RETURNING %[3]s
	`, flag, other, matchColumns)

	match, err := scanMatch(r.db.QueryRow(ctx, query, matchID, now))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrStaleUpdate
		}
		return nil, fmt.Errorf("failed to set consent: %w", err)
	}
	return match, nil
}

func scanMatch(row scanner) (*models.Match, error) {
	var (
		id, userA, userB, placeID, status string
		aAgreed, bAgreed                  bool
		matchedAt                         time.Time
		contactSharedAt                   *time.Time
	)
	err := row.Scan(&id, &userA, &userB, &placeID, &status, &aAgreed, &bAgreed, &matchedAt, &contactSharedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return models.RestoreMatch(id, userA, userB, placeID, models.MatchStatus(status), aAgreed, bAgreed, matchedAt, contactSharedAt)
}
