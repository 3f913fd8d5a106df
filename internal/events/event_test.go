package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipients(t *testing.T) {
	base := Event{MatchID: "m1", UserAID: "a", UserBID: "b"}

	tests := []struct {
		name  string
		typ   Type
		actor string
		want  []string
	}{
		{"created", MatchCreated, "b", []string{"a", "b"}},
		{"agreed by a", MatchAgreed, "a", []string{"b"}},
		{"agreed by b", MatchAgreed, "b", []string{"a"}},
		{"contact shared", ContactShared, "a", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			e.Type, e.ActorID = tt.typ, tt.actor
			assert.Equal(t, tt.want, e.Recipients())
		})
	}
}

type countingHandler struct{ n int }

func (c *countingHandler) Dispatch(context.Context, Event) { c.n++ }

func TestFanout(t *testing.T) {
	h1, h2 := &countingHandler{}, &countingHandler{}
	f := Fanout{h1, nil, h2}
	f.Dispatch(context.Background(), Event{Type: MatchCreated})
	f.Dispatch(context.Background(), Event{Type: MatchAgreed})
	assert.Equal(t, 2, h1.n)
	assert.Equal(t, 2, h2.n)
}

func TestMessageIDDistinguishesActors(t *testing.T) {
	a := Event{Type: MatchAgreed, MatchID: "m1", ActorID: "a"}
	b := Event{Type: MatchAgreed, MatchID: "m1", ActorID: "b"}
	assert.NotEqual(t, messageID(a), messageID(b), "agreements by different users share a message id")
	assert.Equal(t, "m1:match.created", messageID(Event{Type: MatchCreated, MatchID: "m1"}))
}
