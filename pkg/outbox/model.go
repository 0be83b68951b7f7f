package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one row of the outbox table.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// NewEvent builds a pending event with a JSON payload.
func NewEvent(aggregateType, aggregateID, eventType string, payload any, headers map[string]string, traceparent string) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       b,
		Headers:       headers,
		Traceparent:   traceparent,
		Status:        StatusPending,
	}, nil
}
