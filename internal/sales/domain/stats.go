package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stats aggregates orders created in a window. The zero value is the answer
// for a window without orders.
type Stats struct {
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
	OrderCount       int64      `json:"order_count"`
	CouponOrderCount int64      `json:"coupon_order_count"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	ShippingCents    int64      `json:"shipping_cents"`
	DiscountCents    int64      `json:"discount_cents"`
	TotalCents       int64      `json:"total_cents"`
}

// Row is the per-order input of an in-process aggregation.
type Row struct {
	CreatedAt     time.Time
	HasCoupon     bool
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

func (s *Stats) Add(r Row) {
	s.OrderCount++
	if r.HasCoupon {
		s.CouponOrderCount++
	}
	s.SubtotalCents += r.SubtotalCents
	s.ShippingCents += r.ShippingCents
	s.DiscountCents += r.DiscountCents
	s.TotalCents += r.TotalCents
}

type Window string

const (
	WindowLast7Days Window = "7d"
	WindowLastMonth Window = "1m"
	WindowLastYear  Window = "1y"
	WindowAllTime   Window = "all"
)

func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case WindowLast7Days, WindowLastMonth, WindowLastYear, WindowAllTime:
		return w, nil
	case "week", "last7days":
		return WindowLast7Days, nil
	case "month", "lastmonth":
		return WindowLastMonth, nil
	case "year", "lastyear":
		return WindowLastYear, nil
	case "", "alltime":
		return WindowAllTime, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Range is a half-open interval [From, To). A nil bound is unbounded.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// Resolve turns w into a range ending at now.
func (w Window) Resolve(now time.Time) Range {
	now = now.UTC()
	var from time.Time
	switch w {
	case WindowLast7Days:
		from = now.AddDate(0, 0, -7)
	case WindowLastMonth:
		from = now.AddDate(0, -1, 0)
	case WindowLastYear:
		from = now.AddDate(-1, 0, 0)
	default:
		return Range{}
	}
	return Range{From: &from, To: &now}
}
