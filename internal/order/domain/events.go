package domain

import "time"

// Outbox event types.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentApplied     = "PaymentApplied"
)

type OrderCreated struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id,omitempty"`
	TotalCents int64       `json:"total_cents"`
	CouponID   string      `json:"coupon_id,omitempty"`
	Items      []OrderItem `json:"items"`
}

type OrderStatusChanged struct {
	OrderID    string      `json:"order_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	TrackingID string      `json:"tracking_id,omitempty"`
	At         time.Time   `json:"at"`
}

type PaymentApplied struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Event is a domain event ready to be written to the outbox alongside the
// state change that produced it.
type Event struct {
	Type    string
	Payload any
}

// Notification asks the email collaborator to send Template to Recipient.
type Notification struct {
	Template  string `json:"template"`
	Recipient string `json:"recipient"`
	Order     Order  `json:"order"`
}
