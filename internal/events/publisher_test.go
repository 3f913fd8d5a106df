package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherReopensClosedChannel(t *testing.T) {
	url := os.Getenv("TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TEST_RABBITMQ_URL not set")
	}
	exchange := fmt.Sprintf("meetup.test.%d", time.Now().UnixNano())

	p, err := NewPublisher(url, exchange)
	require.NoError(t, err)
	defer p.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.ExchangeDelete(exchange, false, false)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "#", exchange, false, nil))

	// A failed passive declare makes the broker close the channel while
	// the connection stays up.
	err = p.ch.ExchangeDeclarePassive(exchange+".missing", "topic", true, false, false, false, nil)
	require.Error(t, err)
	require.Eventually(t, p.ch.IsClosed, time.Second, 10*time.Millisecond)
	require.False(t, p.conn.IsClosed())

	event := Event{Type: MatchCreated, MatchID: "m1", UserAID: "a", UserBID: "b", OccurredAt: time.Now()}
	require.NoError(t, p.publish(context.Background(), event))
	assert.False(t, p.ch.IsClosed())

	var got amqp.Delivery
	require.Eventually(t, func() bool {
		d, ok, err := ch.Get(q.Name, true)
		if err != nil || !ok {
			return false
		}
		got = d
		return true
	}, 5*time.Second, 50*time.Millisecond)

	var decoded Event
	require.NoError(t, json.Unmarshal(got.Body, &decoded))
	assert.Equal(t, "m1", decoded.MatchID)
	assert.Equal(t, string(MatchCreated), got.RoutingKey)
}
