package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	couponapp "github.com/dmehra2102/storefront-fulfillment/internal/coupon/application"
	coupondomain "github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
	couponmem "github.com/dmehra2102/storefront-fulfillment/internal/coupon/infrastructure/memory"
	invapp "github.com/dmehra2102/storefront-fulfillment/internal/inventory/application"
	invdomain "github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	invmem "github.com/dmehra2102/storefront-fulfillment/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	ordermem "github.com/dmehra2102/storefront-fulfillment/internal/order/infrastructure/memory"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/logging"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *application.Service
	orders   *ordermem.Repository
	stock    *invmem.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the inventory the service talks to.
func newFixtureWith(t *testing.T, wrap func(application.Inventory) application.Inventory) *fixture {
	t.Helper()
	stock := invmem.NewStore(
		invdomain.Product{ID: "mug", Name: "Mug", PriceCents: 2500, Image: "mug.png", Stock: 10},
		invdomain.Product{ID: "tee", Name: "Tee", PriceCents: 5000, Stock: 3},
	)
	orders := ordermem.NewRepository()
	notifier := &recordingNotifier{}
	seq := 0
	var inv application.Inventory = invapp.NewLedger(logging.Discard(), stock)
	if wrap != nil {
		inv = wrap(inv)
	}
	svc := application.NewService(
		logging.Discard(),
		orders,
		inv,
		couponapp.NewValidator(couponmem.NewRepository(coupondomain.Coupon{ID: "c-1", Code: "SAVE5"})),
		notifier,
		application.WithClock(func() time.Time { return fixedNow }),
		application.WithIDGenerator(func() string { seq++; return fmt.Sprintf("ord-%d", seq) }),
	)
	return &fixture{svc: svc, orders: orders, stock: stock, notifier: notifier}
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := f.stock.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func shipping() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "+44 20 7946 0000",
		Line1:      "12 Analytical Row",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
	}
}

func int64p(v int64) *int64 { return &v }

// validInput buys 2 mugs (5000) with 1000 shipping.
func validInput() application.CreateOrderInput {
	return application.CreateOrderInput{
		UserID:        "user-1",
		Items:         []application.ItemInput{{ProductID: "mug", Quantity: 2}},
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentCashOnDelivery,
		Declared:      application.Declared{SubtotalCents: int64p(5000), ShippingCents: 1000, TotalCents: 6000},
	}
}

func TestCreateOrder_PersistsProcessingOrderWithServerAmounts(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, domain.StatusProcessing, o.Status)
	assert.Equal(t, int64(5000), o.SubtotalCents)
	assert.Equal(t, int64(6000), o.TotalCents)
	assert.Equal(t, o.SubtotalCents+o.ShippingCents-o.DiscountCents, o.TotalCents)
	assert.Equal(t, []domain.OrderItem{{ProductID: "mug", Name: "Mug", PriceCents: 2500, Quantity: 2, Image: "mug.png"}}, o.Items)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, 8, f.stockOf(t, "mug"))

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, stored)

	events := f.orders.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)

	assert.Equal(t, []string{domain.TemplateOrderConfirmed}, f.notifier.templates())
}

func TestCreateOrder_SnapshotIgnoresLaterPriceChange(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	f.stock.Put(invdomain.Product{ID: "mug", Name: "Mug v2", PriceCents: 9900, Stock: 8})

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), stored.Items[0].PriceCents)
	assert.Equal(t, "Mug", stored.Items[0].Name)
}

func TestCreateOrder_AmountMismatchReturnsStock(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Declared.TotalCents = 5999

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
	assert.Empty(t, f.orders.Events())
	assert.Empty(t, f.notifier.templates())
}

func TestCreateOrder_ClientPricesAreNeverTrusted(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Declared = application.Declared{SubtotalCents: int64p(2), ShippingCents: 1000, TotalCents: 1002}

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
}

func TestCreateOrder_CouponOnGuestCheckoutTakesNoStock(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.UserID = ""
	in.CouponCode = "SAVE5"
	in.Declared.DiscountCents = 500
	in.Declared.TotalCents = 5500

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.ErrorIs(t, err, apperr.ErrCouponRequiresAuth)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.CouponCode = "save5"
	in.Declared.DiscountCents = 500
	in.Declared.TotalCents = 5500

	o, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "c-1", o.CouponID)
	assert.Equal(t, "SAVE5", o.CouponCode)
	assert.Equal(t, int64(500), o.DiscountCents)
	assert.Equal(t, int64(5500), o.TotalCents)
}

func TestCreateOrder_UnknownCoupon(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.CouponCode = "BOGUS"

	_, err := f.svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrCouponInvalid)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
}

func TestCreateOrder_DiscountWithoutCoupon(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Declared.DiscountCents = 500
	in.Declared.TotalCents = 5500

	_, err := f.svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
}

func TestCreateOrder_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Items = []application.ItemInput{{ProductID: "mug", Quantity: 1}, {ProductID: "tee", Quantity: 4}}
	in.Declared = application.Declared{ShippingCents: 0, TotalCents: 22500}

	_, err := f.svc.CreateOrder(context.Background(), in)

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 10, f.stockOf(t, "mug"))
	assert.Equal(t, 3, f.stockOf(t, "tee"))
	assert.Empty(t, f.orders.Events())
}

func TestCreateOrder_PersistenceFailureReturnsStock(t *testing.T) {
	f := newFixture(t)
	svc := application.NewService(
		logging.Discard(),
		failingCreate{f.orders},
		invapp.NewLedger(logging.Discard(), f.stock),
		couponapp.NewValidator(couponmem.NewRepository()),
		f.notifier,
	)

	_, err := svc.CreateOrder(context.Background(), validInput())

	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 10, f.stockOf(t, "mug"))
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*application.CreateOrderInput)
	}{
		{"no items", func(in *application.CreateOrderInput) { in.Items = nil }},
		{"zero quantity", func(in *application.CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"missing email", func(in *application.CreateOrderInput) { in.Shipping.Email = "" }},
		{"bad email", func(in *application.CreateOrderInput) { in.Shipping.Email = "not-an-email" }},
		{"missing phone", func(in *application.CreateOrderInput) { in.Shipping.Phone = " " }},
		{"bad payment method", func(in *application.CreateOrderInput) { in.PaymentMethod = "barter" }},
		{"negative shipping", func(in *application.CreateOrderInput) { in.Declared.ShippingCents = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tc.mutate(&in)

			_, err := f.svc.CreateOrder(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Equal(t, 10, f.stockOf(t, "mug"))
		})
	}
}

func TestCreateOrder_NotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = errors.New("queue full")

	o, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, o.Status)
}

func TestCreateOrder_ConcurrentCheckoutsForLastUnits(t *testing.T) {
	f := newFixture(t)
	f.stock.Put(invdomain.Product{ID: "tee", Name: "Tee", PriceCents: 5000, Stock: 3})

	in := validInput()
	in.Items = []application.ItemInput{{ProductID: "tee", Quantity: 2}}
	in.Declared = application.Declared{TotalCents: 10000}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), in)
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, f.stockOf(t, "tee"))
}

func TestGetOrder_Access(t *testing.T) {
	f := newFixture(t)
	owned, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	guestIn := validInput()
	guestIn.UserID = ""
	guest, err := f.svc.CreateOrder(context.Background(), guestIn)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		viewer  application.Viewer
		wantErr error
	}{
		{name: "owner", id: owned.ID, viewer: application.Viewer{UserID: "user-1"}},
		{name: "admin", id: owned.ID, viewer: application.Viewer{UserID: "ops", Admin: true}},
		{name: "other user", id: owned.ID, viewer: application.Viewer{UserID: "user-2"}, wantErr: apperr.ErrForbidden},
		{name: "anonymous", id: owned.ID, viewer: application.Viewer{}, wantErr: apperr.ErrUnauthorized},
		{name: "guest with email", id: guest.ID, viewer: application.Viewer{GuestEmail: "ADA@example.com"}},
		{name: "guest wrong email", id: guest.ID, viewer: application.Viewer{GuestEmail: "eve@example.com"}, wantErr: apperr.ErrForbidden},
		{name: "missing", id: "nope", viewer: application.Viewer{Admin: true}, wantErr: apperr.ErrOrderNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := f.svc.GetOrder(context.Background(), tc.id, tc.viewer)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.id, o.ID)
		})
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	fail error
}

func (n *recordingNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.Template)
	}
	return out
}

type failingCreate struct {
	*ordermem.Repository
}

func (failingCreate) Create(context.Context, domain.Order, ...domain.Event) error {
	return errors.New("connection reset")
}
