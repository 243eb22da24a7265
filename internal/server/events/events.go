// Package events publishes domain events to RabbitMQ. Publishing is best
// effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PurchaseRecordedQueue receives one message per newly stored purchase.
const PurchaseRecordedQueue = "purchase.recorded"

type PurchaseRecordedEvent struct {
	PurchaseID   string    `json:"purchase_id"`
	UserID       string    `json:"user_id"`
	MaterialID   string    `json:"material_id"`
	PaymentID    string    `json:"payment_id"`
	Status       string    `json:"status"`
	BuyerEmail   string    `json:"buyer_email"`
	MaterialName string    `json:"material_name"`
	AmountCents  int64     `json:"amount_cents"`
	Simulated    bool      `json:"simulated"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type Publisher interface {
	PublishPurchaseRecorded(ctx context.Context, ev PurchaseRecordedEvent) error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishPurchaseRecorded(context.Context, PurchaseRecordedEvent) error { return nil }

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	Close() error
}

type amqpConn struct{ *amqp.Connection }

func (c amqpConn) Channel() (channel, error) { return c.Connection.Channel() }

var dial = func(url string) (connection, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{c}, nil
}

// AMQPPublisher opens a short-lived connection per event.
type AMQPPublisher struct {
	url string
	now func() time.Time
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, now: time.Now}
}

func (p *AMQPPublisher) PublishPurchaseRecorded(ctx context.Context, ev PurchaseRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(PurchaseRecordedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.PaymentID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", PurchaseRecordedQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
