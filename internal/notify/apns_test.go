package notify

import (
	"context"
	"net/http"
	"testing"

	"meetup-backend/internal/events"
	"meetup-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	sent []*apns2.Notification
}

func (f *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	f.sent = append(f.sent, n)
	return &apns2.Response{StatusCode: http.StatusOK}, nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	out := map[string]*models.User{}
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakePresence map[string]bool

func (f fakePresence) IsOnline(userID string) bool { return f[userID] }

func TestDispatchPushesOfflineRecipients(t *testing.T) {
	tokenA, tokenB := "device-a", "device-b"
	users := fakeUsers{
		"a": {ID: "a", PushToken: &tokenA},
		"b": {ID: "b", PushToken: &tokenB},
		"c": {ID: "c"},
	}

	tests := []struct {
		name     string
		event    events.Event
		online   fakePresence
		wantSent []string
	}{
		{
			name:     "both offline",
			event:    events.Event{Type: events.MatchCreated, MatchID: "m1", UserAID: "a", UserBID: "b"},
			wantSent: []string{"device-a", "device-b"},
		},
		{
			name:     "online user skipped",
			event:    events.Event{Type: events.MatchCreated, MatchID: "m1", UserAID: "a", UserBID: "b"},
			online:   fakePresence{"a": true},
			wantSent: []string{"device-b"},
		},
		{
			name:     "agreement goes to counterpart only",
			event:    events.Event{Type: events.MatchAgreed, MatchID: "m1", UserAID: "a", UserBID: "b", ActorID: "b"},
			wantSent: []string{"device-a"},
		},
		{
			name:     "no device token",
			event:    events.Event{Type: events.ContactShared, MatchID: "m2", UserAID: "a", UserBID: "c"},
			online:   fakePresence{"a": true},
			wantSent: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pusher := &fakePusher{}
			n := NewAPNs(pusher, "com.example.meetup", users, tt.online)
			n.Dispatch(context.Background(), tt.event)

			require.Len(t, pusher.sent, len(tt.wantSent))
			for i, want := range tt.wantSent {
				assert.Equal(t, want, pusher.sent[i].DeviceToken, "notification %d", i)
				assert.Equal(t, "com.example.meetup", pusher.sent[i].Topic)
			}
		})
	}
}
