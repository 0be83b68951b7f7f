package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
)

type captureProducer struct{ msgs []kafka.Message }

func (c *captureProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestNotificationPublisher(t *testing.T) {
	prod := &captureProducer{}
	pub := NewNotificationPublisher(prod, "order.notifications")

	n := domain.Notification{
		Template:  domain.TemplateCancelled,
		Recipient: "ada@example.com",
		Order:     domain.Order{ID: "ord-1", Status: domain.StatusCancelled},
	}
	require.NoError(t, pub.Send(context.Background(), n))

	require.Len(t, prod.msgs, 1)
	msg := prod.msgs[0]
	assert.Equal(t, "order.notifications", msg.Topic)
	assert.Equal(t, "ord-1", string(msg.Key))
	assert.Equal(t, "template", msg.Headers[0].Key)
	assert.Equal(t, domain.TemplateCancelled, string(msg.Headers[0].Value))

	var got domain.Notification
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "ada@example.com", got.Recipient)
	assert.Equal(t, domain.StatusCancelled, got.Order.Status)
}
