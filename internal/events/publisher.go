package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"coffeeshop/internal/config"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "coffeeshop.events"

// Publisher sends JSON events by routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
	Close() error
}

// New returns a RabbitMQ publisher, or a NopPublisher when no broker URL is configured.
func New(cfg config.EventsConfig) (Publisher, error) {
	if cfg.RabbitURL == "" {
		log.Info().Msg("events: RABBITMQ_URL not set, events are discarded")
		return NopPublisher{}, nil
	}
	p, err := NewRabbitPublisher(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RabbitPublisher publishes to a durable topic exchange.
type RabbitPublisher struct {
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(cfg config.EventsConfig) (*RabbitPublisher, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("events: connected to rabbitmq")
	return &RabbitPublisher{exchange: exchange, conn: conn, ch: ch}, nil
}

// Publish marshals v and publishes it as a persistent message.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
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

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	log.Debug().Str("routing_key", routingKey).Msg("events: discarded")
	return nil
}

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
