package domain

import "strings"

// Coupon is the core's view of a discount code. Discount rules live with the
// catalog; the order engine only needs to know the code exists.
type Coupon struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// NormalizeCode makes lookups insensitive to case and surrounding spaces.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
