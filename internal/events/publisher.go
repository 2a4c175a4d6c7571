package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"cimars/catalog/internal/models"
)

const (
	ListingCreated = "listing.created"
	ListingUpdated = "listing.updated"
	ListingDeleted = "listing.deleted"
)

// ListingEvent is the message body for listing lifecycle events. The routing
// key is Type.
type ListingEvent struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	ListingID  string             `json:"listingId"`
	Code       string             `json:"code"`
	Kind       models.ListingKind `json:"kind"`
	DealType   models.DealType    `json:"dealType,omitempty"`
	City       string             `json:"city,omitempty"`
	Price      float64            `json:"price,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewListingEvent snapshots the public fields of l.
func NewListingEvent(eventType string, l *models.Listing) ListingEvent {
	return ListingEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ListingID:  l.ID.Hex(),
		Code:       l.Code,
		Kind:       l.Kind,
		DealType:   l.DealType,
		City:       l.Address.City,
		Price:      l.Price,
		OccurredAt: time.Now().UTC(),
	}
}

// IPublisher publishes listing lifecycle events.
type IPublisher interface {
	Publish(ctx context.Context, event ListingEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ListingEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }

// PublisherConfig configures the RabbitMQ publisher.
type PublisherConfig struct {
	URL          string
	ExchangeName string
	ExchangeType string // defaults to "topic"
}

// RabbitPublisher publishes persistent JSON messages to a durable exchange.
type RabbitPublisher struct {
	cfg  PublisherConfig
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher returns a NoopPublisher when cfg.URL is empty, otherwise dials
// RabbitMQ and declares the exchange.
func NewPublisher(cfg PublisherConfig) (IPublisher, error) {
	if cfg.URL == "" {
		slog.Info("RABBITMQ_URL not set, listing events disabled")
		return NoopPublisher{}, nil
	}
	if cfg.ExchangeName == "" {
		return nil, fmt.Errorf("events: exchange name is required")
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("events: failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.ExchangeName, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to declare exchange %q: %w", cfg.ExchangeName, err)
	}

	slog.Info("listing events enabled", "exchange", cfg.ExchangeName)
	return &RabbitPublisher{cfg: cfg, conn: conn, ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event ListingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal %s: %w", event.Type, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.conn.IsClosed() {
		return fmt.Errorf("events: publisher is not connected")
	}
	err = p.ch.PublishWithContext(ctx, p.cfg.ExchangeName, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: failed to publish %s for %s: %w", event.Type, event.Code, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
