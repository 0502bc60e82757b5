// Package notify publishes company-scoped state-change events. Delivery is
// fire-and-forget: publish errors are logged, never returned to the pipeline.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const exchangeName = "zapcrm.events"

// Publisher is the notification sink consumed by the pipeline.
type Publisher interface {
	Publish(companyID int, event string, payload any)
}

// AMQPPublisher pushes events onto a topic exchange, routed by
// company.<id>.<event> so UI consumers can bind per company.
type AMQPPublisher struct {
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{
		log:  log.With().Str("component", "notify").Logger(),
		conn: conn,
		ch:   ch,
	}, nil
}

func (p *AMQPPublisher) Publish(companyID int, event string, payload any) {
	body, err := json.Marshal(map[string]any{
		"event":      event,
		"company_id": companyID,
		"payload":    payload,
		"emitted_at": time.Now().UTC(),
	})
	if err != nil {
		p.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}

	routingKey := fmt.Sprintf("company.%d.%s", companyID, event)

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.log.Error().Err(err).Str("key", routingKey).Msg("publish event")
	}
}

// Ping reports whether the underlying connection is still usable.
func (p *AMQPPublisher) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NopPublisher discards events. Useful in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(int, string, any) {}
