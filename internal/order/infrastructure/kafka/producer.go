package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/tracing"
)

// NewWriter returns a producer that waits for all in-sync replicas. Topics
// are set per message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NotificationPublisher sends notifications to the topic consumed by the
// email collaborator.
type NotificationPublisher struct {
	producer Producer
	topic    string
}

func NewNotificationPublisher(producer Producer, topic string) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, topic: topic}
}

func (p *NotificationPublisher) Send(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	headers := []kafka.Header{{Key: "template", Value: []byte(n.Template)}}
	return p.producer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(n.Order.ID),
		Value:   body,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
	})
}
