// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/kart-fulfillment/internal/domain/order"
)

// Event types, sent in the event_type header.
const (
	TypeOrderPlaced    = "order.placed"
	TypeOrderCancelled = "order.cancelled"
)

// Config configures the publisher.
type Config struct {
	Brokers []string `usage:"Kafka brokers; events are discarded when empty"`
	Topic   string   `default:"orders" usage:"Topic for order events"`
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Events = (*Publisher)(nil)

// Publisher writes order events keyed by order id so that events of one
// order stay in a single partition.
type Publisher struct {
	w   writer
	now func() time.Time
}

// New creates a Publisher. With no brokers it returns a publisher that
// discards every event.
func New(cfg Config) *Publisher {
	if len(cfg.Brokers) == 0 {
		return &Publisher{now: time.Now}
	}
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	})
}

func newPublisher(w writer) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.w != nil }

// OrderPlaced publishes an order.placed event.
func (p *Publisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, TypeOrderPlaced, o)
}

// OrderCancelled publishes an order.cancelled event.
func (p *Publisher) OrderCancelled(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, TypeOrderCancelled, o)
}

func (p *Publisher) publish(ctx context.Context, eventType string, o *order.Order) error {
	if p.w == nil {
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: Encode(eventType, o, p.now()),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s", eventType)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

// Encode renders the event payload.
func Encode(eventType string, o *order.Order, at time.Time) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("type")
	e.Str(eventType)
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("cart_id")
	e.Str(o.CartID)
	if c := o.Cart; c != nil {
		e.FieldStart("customer_id")
		e.Str(c.CustomerID)
		e.FieldStart("total")
		e.Str(c.Total.StringFixed(2))
		e.FieldStart("lines")
		e.ArrStart()
		for _, it := range c.Items {
			e.ObjStart()
			e.FieldStart("product_id")
			e.Str(it.ProductID)
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.FieldStart("total")
			e.Str(it.Total.StringFixed(2))
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.FieldStart("occurred_at")
	e.Str(at.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()

	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}
