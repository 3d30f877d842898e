package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"go.uber.org/zap"
)

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// CredentialInvalidatedEvent announces that a user's upstream credential was
// rejected and polling of their vehicles has stopped. The consumer owning
// user notification picks it up from here.
type CredentialInvalidatedEvent struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	OccurredAt string `json:"occurred_at"`
}

// PublishCredentialInvalidated publishes a credential invalidation event
func (p *Publisher) PublishCredentialInvalidated(ctx context.Context, event CredentialInvalidatedEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published credential invalidation event",
		zap.String("routing_key", routingKey),
		zap.String("user_id", event.UserID),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// Notifier adapts the publisher to the scheduler's notification call point.
type Notifier struct {
	publisher  *Publisher
	routingKey string
	now        func() time.Time
}

// NewNotifier creates a notifier publishing on the given routing key.
func NewNotifier(publisher *Publisher, routingKey string) *Notifier {
	return &Notifier{
		publisher:  publisher,
		routingKey: routingKey,
		now:        time.Now,
	}
}

// NotifyCredentialInvalidated publishes the invalidation event for a user.
func (n *Notifier) NotifyCredentialInvalidated(ctx context.Context, user db.User) error {
	return n.publisher.PublishCredentialInvalidated(ctx, CredentialInvalidatedEvent{
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: n.now().UTC().Format(time.RFC3339),
	}, n.routingKey)
}
