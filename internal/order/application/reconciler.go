package application

import (
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/money"
)

// Declared holds the amounts the client sent. They are checked, never used.
// SubtotalCents is optional.
type Declared struct {
	SubtotalCents *int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Reconcile recomputes the subtotal from the snapshot prices in items and
// checks the client's figures against it.
func Reconcile(items []domain.OrderItem, d Declared) (domain.Amounts, error) {
	if d.ShippingCents < 0 || d.DiscountCents < 0 {
		return domain.Amounts{}, apperr.Validation("shipping and discount must not be negative")
	}

	var subtotal int64
	for _, it := range items {
		subtotal += it.PriceCents * int64(it.Quantity)
	}
	if d.SubtotalCents != nil && *d.SubtotalCents != subtotal {
		return domain.Amounts{}, mismatch("subtotal", subtotal, *d.SubtotalCents)
	}
	if d.DiscountCents > subtotal+d.ShippingCents {
		return domain.Amounts{}, apperr.Validation("discount %s exceeds order value %s",
			money.Format(d.DiscountCents), money.Format(subtotal+d.ShippingCents))
	}

	total := subtotal + d.ShippingCents - d.DiscountCents
	if d.TotalCents != total {
		return domain.Amounts{}, mismatch("total", total, d.TotalCents)
	}
	return domain.Amounts{
		SubtotalCents: subtotal,
		ShippingCents: d.ShippingCents,
		DiscountCents: d.DiscountCents,
		TotalCents:    total,
	}, nil
}

func mismatch(field string, expected, declared int64) error {
	return apperr.Newf(apperr.KindAmountMismatch, "declared %s %s does not match %s",
		field, money.Format(declared), money.Format(expected)).
		With("field", field).
		With("expected", money.Format(expected)).
		With("declared", money.Format(declared))
}
