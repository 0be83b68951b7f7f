package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

func TestReconcile_Example(t *testing.T) {
	items := []domain.OrderItem{{ProductID: "a", PriceCents: 10000, Quantity: 1}}

	_, err := application.Reconcile(items, application.Declared{ShippingCents: 1000, DiscountCents: 500, TotalCents: 10600})
	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)

	got, err := application.Reconcile(items, application.Declared{ShippingCents: 1000, DiscountCents: 500, TotalCents: 10500})
	require.NoError(t, err)
	assert.Equal(t, domain.Amounts{SubtotalCents: 10000, ShippingCents: 1000, DiscountCents: 500, TotalCents: 10500}, got)
}

func TestReconcile_DeclaredSubtotalMustMatch(t *testing.T) {
	items := []domain.OrderItem{{PriceCents: 333, Quantity: 3}}
	wrong := int64(1000)

	_, err := application.Reconcile(items, application.Declared{SubtotalCents: &wrong, TotalCents: 999})

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindAmountMismatch, e.Kind)
	assert.Equal(t, "subtotal", e.Fields["field"])
	assert.Equal(t, "9.99", e.Fields["expected"])
}

func TestReconcile_DiscountBeyondOrderValue(t *testing.T) {
	items := []domain.OrderItem{{PriceCents: 100, Quantity: 1}}

	_, err := application.Reconcile(items, application.Declared{DiscountCents: 200, TotalCents: -100})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReconcile_TotalIdentityHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "items")
		items := make([]domain.OrderItem, n)
		var subtotal int64
		for i := range items {
			items[i] = domain.OrderItem{
				PriceCents: rapid.Int64Range(0, 1_000_000).Draw(t, "price"),
				Quantity:   rapid.IntRange(1, 50).Draw(t, "qty"),
			}
			subtotal += items[i].PriceCents * int64(items[i].Quantity)
		}
		shipping := rapid.Int64Range(0, 10_000).Draw(t, "shipping")
		discount := rapid.Int64Range(0, subtotal+shipping).Draw(t, "discount")
		delta := rapid.Int64Range(-3, 3).Draw(t, "delta")

		declared := application.Declared{ShippingCents: shipping, DiscountCents: discount, TotalCents: subtotal + shipping - discount + delta}
		got, err := application.Reconcile(items, declared)

		if delta != 0 {
			if apperr.KindOf(err) != apperr.KindAmountMismatch {
				t.Fatalf("expected amount mismatch, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.TotalCents != got.SubtotalCents+got.ShippingCents-got.DiscountCents {
			t.Fatalf("total identity broken: %+v", got)
		}
		if got.SubtotalCents != subtotal {
			t.Fatalf("subtotal %d, want %d", got.SubtotalCents, subtotal)
		}
	})
}
