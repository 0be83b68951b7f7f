package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType   = "event_type"
	HeaderTraceparent = "traceparent"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher turns outbox events into Kafka messages keyed by aggregate id,
// so all events of one order land on one partition in order.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, Message(d.topic, e))
	}
	if err := d.producer.WriteMessages(ctx, msgs...); err != nil {
		d.log.Error("outbox dispatch failed", "events", len(events), "err", err)
		return err
	}
	for _, e := range events {
		d.log.Debug("outbox dispatched", "event_id", e.ID, "type", e.Type, "aggregate_id", e.AggregateID)
	}
	return nil
}

func Message(topic string, e Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(e.Headers)+2)
	for k, v := range e.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(e.Type)})
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceparent, Value: []byte(e.Traceparent)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: headers,
	}
}
