// Package events publishes applied order transitions to the message brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// StateChanged is the wire form of an applied transition.
type StateChanged struct {
	EventID       string    `json:"event_id"`
	OrderID       string    `json:"order_id"`
	Reference     string    `json:"payment_reference"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Callback      string    `json:"callback_status"`
	State         string    `json:"state"`
	PreviousState string    `json:"previous_state"`
	Timestamp     time.Time `json:"timestamp"`
}

func newStateChanged(evt models.TransitionEvent) StateChanged {
	ts := evt.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return StateChanged{
		EventID:       uuid.NewString(),
		OrderID:       evt.OrderID,
		Reference:     evt.Reference,
		TransactionID: evt.TransactionID,
		Callback:      string(evt.Callback),
		State:         string(evt.To),
		PreviousState: string(evt.From),
		Timestamp:     ts,
	}
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishTransition(ctx context.Context, evt models.TransitionEvent) error {
	payload, err := json.Marshal(newStateChanged(evt))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: payload,
	})
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// NatsPublisher publishes to "<prefix>.<state>" so consumers can subscribe to
// a single outcome, e.g. "orders.payment.paid".
type NatsPublisher struct {
	conn   Conn
	prefix string
}

func NewNatsPublisher(conn Conn, prefix string) *NatsPublisher {
	return &NatsPublisher{conn: conn, prefix: prefix}
}

func (p *NatsPublisher) PublishTransition(_ context.Context, evt models.TransitionEvent) error {
	payload, err := json.Marshal(newStateChanged(evt))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}
	return p.conn.Publish(p.prefix+"."+string(evt.To), payload)
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []interfaces.TransitionPublisher

func (f Fanout) PublishTransition(ctx context.Context, evt models.TransitionEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishTransition(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
