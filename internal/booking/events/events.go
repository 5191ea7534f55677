package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange job events are published to.
const DefaultExchange = "job_topic"

// Event types.
const (
	TypeStatus   = "status"
	TypeDeclined = "declined"
)

// JobEvent describes a change of a job visible to downstream consumers.
type JobEvent struct {
	Type          string    `json:"type"`
	JobID         string    `json:"job_id"`
	Status        string    `json:"status,omitempty"`
	CustomerID    int64     `json:"customer_id"`
	MechanicID    int64     `json:"mechanic_id,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	At            time.Time `json:"at"`
}

// RoutingKey returns job.status.<status> or job.declined.
func (e JobEvent) RoutingKey() string {
	if e.Type == TypeDeclined {
		return "job.declined"
	}
	return "job.status." + strings.ToLower(e.Status)
}

// Channel is satisfied by *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends job events to RabbitMQ.
type Publisher struct {
	ch       Channel
	exchange string
}

// NewPublisher creates a publisher for exchange.
func NewPublisher(ch Channel, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		ev.RoutingKey(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.At,
			MessageId:    ev.JobID + ":" + ev.RoutingKey(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

// Declare creates the topic exchange if it does not exist.
func Declare(ch *amqp.Channel, exchange string) error {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(context.Context, JobEvent) error { return nil }
