// Package notify sends push notifications about match events to users
// who are not connected over WebSocket.
package notify

import (
	"context"
	"fmt"
	"time"

	"meetup-backend/internal/events"
	"meetup-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

const pushTimeout = 5 * time.Second

// Config holds the APNs token-auth settings
type Config struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// Pusher sends one notification
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// UserLookup resolves recipients to their device tokens
type UserLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Presence reports whether a user already gets the event over WebSocket
type Presence interface {
	IsOnline(userID string) bool
}

// APNs pushes match events to offline recipients that registered a device token
type APNs struct {
	client   Pusher
	topic    string
	users    UserLookup
	presence Presence
}

// NewClient builds a token-based APNs client from a .p8 key
func NewClient(cfg Config) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

// NewAPNs creates a notifier
func NewAPNs(client Pusher, topic string, users UserLookup, presence Presence) *APNs {
	return &APNs{
		client:   client,
		topic:    topic,
		users:    users,
		presence: presence,
	}
}

// Dispatch pushes the event to every offline recipient with a device token
func (a *APNs) Dispatch(ctx context.Context, event events.Event) {
	var offline []string
	for _, id := range event.Recipients() {
		if a.presence == nil || !a.presence.IsOnline(id) {
			offline = append(offline, id)
		}
	}
	if len(offline) == 0 {
		return
	}

	users, err := a.users.GetByIDs(ctx, offline)
	if err != nil {
		log.Error().Err(err).Str("match_id", event.MatchID).Msg("Failed to load push recipients")
		return
	}

	for _, id := range offline {
		user, ok := users[id]
		if !ok || user.PushToken == nil || *user.PushToken == "" {
			continue
		}
		if err := a.push(ctx, *user.PushToken, event); err != nil {
			log.Error().
				Err(err).
				Str("user_id", id).
				Str("type", string(event.Type)).
				Msg("Failed to send push notification")
		}
	}
}

func (a *APNs) push(ctx context.Context, deviceToken string, event events.Event) error {
	title, body := alertText(event.Type)
	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       a.topic,
		Payload: payload.NewPayload().
			AlertTitle(title).
			AlertBody(body).
			Sound("default").
			Custom("type", string(event.Type)).
			Custom("match_id", event.MatchID),
	}

	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	res, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		return err
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

func alertText(t events.Type) (string, string) {
	switch t {
	case events.MatchCreated:
		return "New match", "Someone at your place wants to meet. Agree to share contacts."
	case events.MatchAgreed:
		return "Your match agreed", "Agree too and your contacts will be shared."
	case events.ContactShared:
		return "Contacts shared", "You both agreed. Open the app to see the contact."
	default:
		return "Meetup", string(t)
	}
}
