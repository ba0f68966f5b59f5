// Package notify delivers order events to interested consumers. The primary
// sink publishes to a RabbitMQ topic exchange; a logging sink stands in when
// no broker is configured.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/order"
)

const exchangeName = "order.events"

// Routing keys per event.
const (
	keyOrderCreated   = "order.created"
	keyStatusChanged  = "order.status_changed"
	keyOrderReady     = "order.ready"
	keyOrderCompleted = "order.completed"
)

var _ order.NotificationSink = (*AMQPSink)(nil)

// AMQPSink publishes order events to a RabbitMQ topic exchange.
type AMQPSink struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
	lg   *zap.Logger
}

// NewAMQPSink dials the broker and declares the events exchange.
func NewAMQPSink(url string, lg *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	err = ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	return &AMQPSink{conn: conn, ch: ch, lg: lg}, nil
}

// Close releases the channel and connection.
func (s *AMQPSink) Close() error {
	if err := s.ch.Close(); err != nil {
		return errors.Wrap(err, "close channel")
	}
	return s.conn.Close()
}

type orderCreatedEvent struct {
	OrderID    string    `json:"order_id"`
	TenantID   string    `json:"tenant_id"`
	CustomerID string    `json:"customer_id"`
	Type       string    `json:"type"`
	Total      string    `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

type statusChangedEvent struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Notes   string `json:"notes,omitempty"`
}

type orderEvent struct {
	OrderID string `json:"order_id"`
}

// NotifyNewOrder publishes an order.created event.
func (s *AMQPSink) NotifyNewOrder(ctx context.Context, o *order.Order) error {
	return s.publish(ctx, keyOrderCreated, orderCreatedEvent{
		OrderID:    o.ID,
		TenantID:   o.TenantID,
		CustomerID: o.CustomerID,
		Type:       string(o.Type),
		Total:      o.Total.StringFixed(2),
		CreatedAt:  o.CreatedAt,
	})
}

// NotifyStatusChanged publishes an order.status_changed event.
func (s *AMQPSink) NotifyStatusChanged(ctx context.Context, orderID string, from, to order.Status, notes string) error {
	return s.publish(ctx, keyStatusChanged, statusChangedEvent{
		OrderID: orderID,
		From:    string(from),
		To:      string(to),
		Notes:   notes,
	})
}

// NotifyOrderReady publishes an order.ready event.
func (s *AMQPSink) NotifyOrderReady(ctx context.Context, orderID string) error {
	return s.publish(ctx, keyOrderReady, orderEvent{OrderID: orderID})
}

// NotifyOrderCompleted publishes an order.completed event.
func (s *AMQPSink) NotifyOrderCompleted(ctx context.Context, orderID string) error {
	return s.publish(ctx, keyOrderCompleted, orderEvent{OrderID: orderID})
}

func (s *AMQPSink) publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = s.ch.PublishWithContext(ctx, exchangeName, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}

	s.lg.Debug("event published",
		zap.String("routing_key", key),
		zap.Int("size", len(body)),
	)
	return nil
}
