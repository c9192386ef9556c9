package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Story event types published to the fanout exchange.
const (
	EventStoryCreated     = "story_created"
	EventSegmentGenerated = "segment_generated"
	EventStoryEnded       = "story_ended"
	EventStoryDeleted     = "story_deleted"
)

// StoryEvent is the message body for story lifecycle notifications.
type StoryEvent struct {
	Type         string    `json:"type"`
	StoryID      uuid.UUID `json:"storyId"`
	SegmentIndex int       `json:"segmentIndex,omitempty"`
	IsFallback   bool      `json:"isFallback,omitempty"`
	IsEnding     bool      `json:"isEnding,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// StoryEventPublisher notifies downstream consumers of story lifecycle
// changes. Publishing is best-effort; callers never fail a request on a
// publish error.
type StoryEventPublisher interface {
	PublishStoryEvent(ctx context.Context, event StoryEvent) error
	Close() error
}

// RabbitMQStoryPublisher publishes story events to a durable fanout
// exchange. The connection is established and supervised by the caller.
type RabbitMQStoryPublisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
}

func NewRabbitMQStoryPublisher(conn *amqp091.Connection, exchange string) (*RabbitMQStoryPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open a channel")
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error().Err(err).Str("exchange", exchange).Msg("Failed to declare exchange")
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("Story event exchange declared")
	return &RabbitMQStoryPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitMQStoryPublisher) PublishStoryEvent(ctx context.Context, event StoryEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Failed to marshal story event")
		return fmt.Errorf("failed to marshal story event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		"",    // routing key unused for fanout
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   event.OccurredAt,
		},
	)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Str("storyID", event.StoryID.String()).Msg("Failed to publish story event")
		return fmt.Errorf("failed to publish story event: %w", err)
	}

	log.Debug().Str("type", event.Type).Str("storyID", event.StoryID.String()).Msg("Story event published")
	return nil
}

func (p *RabbitMQStoryPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// NopPublisher is used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishStoryEvent(context.Context, StoryEvent) error { return nil }
func (NopPublisher) Close() error                                        { return nil }
