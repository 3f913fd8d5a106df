package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher sends events to a durable RabbitMQ topic exchange using the
// event type as routing key. Failures are logged and never reach the
// request that produced the event.
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect must be called with p.mu held or before p is shared
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	p.conn = conn
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// openChannel opens a channel on the current connection and declares
// the exchange. Must be called with p.mu held or before p is shared.
func (p *Publisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	p.ch = ch
	return nil
}

// ensureChannel redials when the connection is gone and reopens the
// channel when only the channel was closed by the broker
func (p *Publisher) ensureChannel() error {
	if p.conn == nil || p.conn.IsClosed() {
		return p.connect()
	}
	if p.ch == nil || p.ch.IsClosed() {
		log.Warn().Str("exchange", p.exchange).Msg("RabbitMQ channel closed, reopening")
		return p.openChannel()
	}
	return nil
}

// Dispatch publishes the event as a persistent JSON message
func (p *Publisher) Dispatch(ctx context.Context, event Event) {
	if err := p.publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("type", string(event.Type)).
			Str("match_id", event.MatchID).
			Msg("Failed to publish event")
	}
}

func (p *Publisher) publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		p.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt.UTC(),
			MessageId:    messageID(event),
			Body:         body,
		},
	)
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func messageID(event Event) string {
	id := event.MatchID + ":" + string(event.Type)
	if event.ActorID != "" {
		id += ":" + event.ActorID
	}
	return id
}
