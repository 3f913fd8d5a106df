package services

import (
	"context"
	"fmt"
	"time"

	"meetup-backend/internal/models"
)

// MatchView is a match as shown to one of its participants
type MatchView struct {
	ID              string         `json:"id"`
	Place           *models.Place  `json:"place,omitempty"`
	User1           models.Profile `json:"user1"`
	User2           models.Profile `json:"user2"`
	Status          string         `json:"status"`
	User1Agreed     bool           `json:"user1_agreed"`
	User2Agreed     bool           `json:"user2_agreed"`
	MatchedAt       time.Time      `json:"matched_at"`
	ContactSharedAt *time.Time     `json:"contact_shared_at,omitempty"`
}

// QueueView is a queue entry with its place attached
type QueueView struct {
	*models.QueueEntry
	Place *models.Place `json:"place,omitempty"`
}

// disclosure decides which contact methods a view carries
type disclosure int

const (
	// withholdAll hides both contact methods
	withholdAll disclosure = iota
	// viewerPolicy shows the viewer's own contact method and the
	// counterpart's only once both agreed
	viewerPolicy
)

// viewBuilder loads the users and places referenced by matches in two
// batched reads and renders views for one viewer.
type viewBuilder struct {
	users  UserStore
	places PlaceStore
}

func (b viewBuilder) matches(ctx context.Context, matches []*models.Match, viewerID string, policy disclosure) ([]*MatchView, error) {
	if len(matches) == 0 {
		return []*MatchView{}, nil
	}

	userIDs := make([]string, 0, len(matches)*2)
	placeIDs := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, id := range []string{m.UserAID, m.UserBID} {
			if !seen[id] {
				seen[id] = true
				userIDs = append(userIDs, id)
			}
		}
		if !seen[m.PlaceID] {
			seen[m.PlaceID] = true
			placeIDs = append(placeIDs, m.PlaceID)
		}
	}

	users, err := b.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load match users: %w", err)
	}
	places, err := b.places.GetByIDs(ctx, placeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load match places: %w", err)
	}

	views := make([]*MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, renderMatch(m, users, places[m.PlaceID], viewerID, policy))
	}
	return views, nil
}

func (b viewBuilder) match(ctx context.Context, m *models.Match, viewerID string, policy disclosure) (*MatchView, error) {
	views, err := b.matches(ctx, []*models.Match{m}, viewerID, policy)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func renderMatch(m *models.Match, users map[string]*models.User, place *models.Place, viewerID string, policy disclosure) *MatchView {
	view := &MatchView{
		ID:              m.ID,
		Place:           place,
		User1:           profileFor(users[m.UserAID], m.UserAID),
		User2:           profileFor(users[m.UserBID], m.UserBID),
		Status:          string(m.Status()),
		User1Agreed:     m.AAgreed(),
		User2Agreed:     m.BAgreed(),
		MatchedAt:       m.MatchedAt,
		ContactSharedAt: m.ContactSharedAt(),
	}
	if policy == withholdAll {
		return view
	}

	revealCounterpart := m.Status() == models.MatchBothAgreed
	reveal := func(p *models.Profile, u *models.User) {
		if u == nil {
			return
		}
		if u.ID == viewerID || revealCounterpart {
			contact := u.ContactMethod
			p.ContactMethod = &contact
		}
	}
	reveal(&view.User1, users[m.UserAID])
	reveal(&view.User2, users[m.UserBID])
	return view
}

// profileFor tolerates a user row that disappeared; no cascading delete exists
func profileFor(u *models.User, id string) models.Profile {
	if u == nil {
		return models.Profile{ID: id}
	}
	return u.Profile()
}
