package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusTracking   OrderStatus = "tracking"
)

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusTracking:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentGateway        PaymentMethod = "gateway"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	pm := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch pm {
	case PaymentCashOnDelivery, PaymentGateway:
		return pm, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// OrderItem is a line item. Name, price and image are copied at purchase
// time and never follow later catalog edits.
type OrderItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image,omitempty"`
}

// RestockLine is stock a cancelled order still has to give back.
type RestockLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult is the last gateway notification applied to the order. Raw
// keeps the provider fields for audit.
type PaymentResult struct {
	TransactionID string            `json:"transaction_id"`
	Status        string            `json:"status"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Raw           map[string]string `json:"raw,omitempty"`
}

// SameAs compares everything except the timestamp.
func (p *PaymentResult) SameAs(other *PaymentResult) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.TransactionID != other.TransactionID || p.Status != other.Status || len(p.Raw) != len(other.Raw) {
		return false
	}
	for k, v := range p.Raw {
		if ov, ok := other.Raw[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	Items         []OrderItem     `json:"items"`
	Shipping      ShippingAddress `json:"shipping"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Payment       *PaymentResult  `json:"payment,omitempty"`
	CouponID      string          `json:"coupon_id,omitempty"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	SubtotalCents int64           `json:"subtotal_cents"`
	ShippingCents int64           `json:"shipping_cents"`
	DiscountCents int64           `json:"discount_cents"`
	TotalCents    int64           `json:"total_cents"`
	Status        OrderStatus     `json:"status"`
	TrackingID    string          `json:"tracking_id,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	// PendingRestock lists the lines not yet returned to inventory after a
	// cancellation. It is emptied as the returns succeed.
	PendingRestock []RestockLine   `json:"pending_restock,omitempty"`
}

// Amounts are the server-side money figures of an order, in cents.
type Amounts struct {
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

type NewOrderParams struct {
	ID            string
	UserID        string
	Items         []OrderItem
	Shipping      ShippingAddress
	PaymentMethod PaymentMethod
	CouponID      string
	CouponCode    string
	Amounts       Amounts
	Now           time.Time
}

func NewOrder(p NewOrderParams) Order {
	now := p.Now.UTC()
	return Order{
		ID:            p.ID,
		UserID:        p.UserID,
		Items:         p.Items,
		Shipping:      p.Shipping,
		PaymentMethod: p.PaymentMethod,
		CouponID:      p.CouponID,
		CouponCode:    p.CouponCode,
		SubtotalCents: p.Amounts.SubtotalCents,
		ShippingCents: p.Amounts.ShippingCents,
		DiscountCents: p.Amounts.DiscountCents,
		TotalCents:    p.Amounts.TotalCents,
		Status:        StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o Order) IsGuest() bool { return o.UserID == "" }

// IsPaid reports whether the gateway confirmed payment.
func (o Order) IsPaid() bool {
	return o.Payment != nil && strings.EqualFold(o.Payment.Status, PaymentStatusComplete)
}

// Apply moves the order along t. The caller must have obtained t from
// PlanTransition for the order's current status.
func (o *Order) Apply(t Transition, trackingID string, now time.Time) {
	now = now.UTC()
	o.Status = t.To
	if trackingID != "" {
		o.TrackingID = trackingID
	}
	if t.Has(EffectStampDelivered) {
		o.DeliveredAt = &now
	}
	if t.Has(EffectRestock) {
		o.PendingRestock = make([]RestockLine, 0, len(o.Items))
		for _, it := range o.Items {
			o.PendingRestock = append(o.PendingRestock, RestockLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	o.UpdatedAt = now
}

// Provider payment states the engine reacts to.
const (
	PaymentStatusComplete = "COMPLETE"
	PaymentStatusFailed   = "FAILED"
)
