// Package events defines match lifecycle events and fans them out to
// the WebSocket hub, push notifications and the message broker.
package events

import (
	"context"
	"time"
)

// Type names an event; it doubles as the broker routing key
type Type string

const (
	MatchCreated  Type = "match.created"
	MatchAgreed   Type = "match.agreed"
	ContactShared Type = "match.contact_shared"
)

// Event describes something that happened to a match
type Event struct {
	Type       Type      `json:"type"`
	MatchID    string    `json:"match_id"`
	PlaceID    string    `json:"place_id"`
	UserAID    string    `json:"user_a_id"`
	UserBID    string    `json:"user_b_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Recipients returns the users that should be told about the event.
// An agreement is only news to the participant who did not act.
func (e Event) Recipients() []string {
	if e.Type == MatchAgreed {
		switch e.ActorID {
		case e.UserAID:
			return []string{e.UserBID}
		case e.UserBID:
			return []string{e.UserAID}
		}
	}
	return []string{e.UserAID, e.UserBID}
}

// Handler consumes events
type Handler interface {
	Dispatch(ctx context.Context, event Event)
}

// Fanout dispatches every event to each handler in order
type Fanout []Handler

func (f Fanout) Dispatch(ctx context.Context, event Event) {
	for _, h := range f {
		if h != nil {
			h.Dispatch(ctx, event)
		}
	}
}
