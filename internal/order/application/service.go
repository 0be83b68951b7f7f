package application

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

const defaultCompensationTimeout = 5 * time.Second

type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	inv      Inventory
	coupons  CouponValidator
	notifier Notifier
	tracer   trace.Tracer

	newID               func() string
	now                 func() time.Time
	compensationTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(log *slog.Logger, repo OrderRepository, inv Inventory, coupons CouponValidator, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		log:                 log,
		repo:                repo,
		inv:                 inv,
		coupons:             coupons,
		notifier:            notifier,
		tracer:              otel.Tracer("order-service"),
		newID:               uuid.NewString,
		now:                 time.Now,
		compensationTimeout: defaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID        string
	Items         []ItemInput
	Shipping      domain.ShippingAddress
	PaymentMethod domain.PaymentMethod
	CouponCode    string
	Declared      Declared
}

// CreateOrder validates the coupon, takes stock, reconciles the amounts and
// persists the order in processing state. Any failure after stock was taken
// returns that stock before the error is reported.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(attribute.Int("items", len(in.Items))))
	defer span.End()

	o, err := s.createOrder(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order_id", o.ID))
	return o, nil
}

func (s *Service) createOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := validateInput(in); err != nil {
		return domain.Order{}, err
	}

	var couponID, couponCode string
	if in.CouponCode != "" {
		c, err := s.coupons.Validate(ctx, in.CouponCode, in.UserID)
		if err != nil {
			return domain.Order{}, err
		}
		couponID, couponCode = c.ID, c.Code
	} else if in.Declared.DiscountCents != 0 {
		return domain.Order{}, apperr.Validation("a discount requires a coupon")
	}

	demands := make([]invdomain.Demand, 0, len(in.Items))
	for _, it := range in.Items {
		demands = append(demands, invdomain.Demand{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	snapshots, err := s.inv.Reserve(ctx, demands)
	if err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(snapshots))
	for _, sn := range snapshots {
		items = append(items, domain.OrderItem{
			ProductID:  sn.ProductID,
			Name:       sn.Name,
			PriceCents: sn.PriceCents,
			Quantity:   sn.Quantity,
			Image:      sn.Image,
		})
	}

	amounts, err := Reconcile(items, in.Declared)
	if err != nil {
		s.returnStock(ctx, "", demands)
		return domain.Order{}, err
	}

	o := domain.NewOrder(domain.NewOrderParams{
		ID:            s.newID(),
		UserID:        in.UserID,
		Items:         items,
		Shipping:      in.Shipping,
		PaymentMethod: in.PaymentMethod,
		CouponID:      couponID,
		CouponCode:    couponCode,
		Amounts:       amounts,
		Now:           s.now(),
	})
	created := domain.Event{Type: domain.EventOrderCreated, Payload: domain.OrderCreated{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
		CouponID:   o.CouponID,
		Items:      o.Items,
	}}
	if err := s.repo.Create(ctx, o, created); err != nil {
		s.returnStock(ctx, o.ID, demands)
		return domain.Order{}, err
	}

	s.log.Info("order created", "order_id", o.ID, "total_cents", o.TotalCents, "payment_method", o.PaymentMethod)
	s.notify(ctx, o, domain.TemplateOrderConfirmed)
	return o, nil
}

// Viewer identifies who is reading an order. Guests prove access with the
// contact email used at checkout.
type Viewer struct {
	UserID     string
	Admin      bool
	GuestEmail string
}

func (s *Service) GetOrder(ctx context.Context, id string, v Viewer) (domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	switch {
	case v.Admin:
	case o.UserID != "" && o.UserID == v.UserID:
	case o.IsGuest() && v.GuestEmail != "" && strings.EqualFold(o.Shipping.Email, v.GuestEmail):
	case v.UserID == "" && v.GuestEmail == "":
		return domain.Order{}, apperr.New(apperr.KindUnauthorized, "sign in to view this order")
	default:
		return domain.Order{}, apperr.New(apperr.KindForbidden, "order belongs to another customer")
	}
	return o, nil
}

// FindOrder loads an order without access checks. It serves callers that
// authenticated by other means, such as a signed gateway notification.
func (s *Service) FindOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// returnStock compensates a failed creation. It outlives the caller's
// context so an aborted request cannot leave stock taken.
func (s *Service) returnStock(ctx context.Context, orderID string, demands []invdomain.Demand) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()
	if err := s.inv.Restore(cctx, demands); err != nil {
		s.log.Error("stock compensation failed", "order_id", orderID, "err", err)
	}
}

func (s *Service) notify(ctx context.Context, o domain.Order, template string) {
	if template == "" || s.notifier == nil {
		return
	}
	n := domain.Notification{Template: template, Recipient: o.Shipping.Email, Order: o}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification not dispatched", "order_id", o.ID, "template", template, "err", err)
	}
}

func validateInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.Validation("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return apperr.Validation("item %d: quantity must be positive", i)
		}
	}

	sh := in.Shipping
	required := []struct{ field, value string }{
		{"full_name", sh.FullName},
		{"email", sh.Email},
		{"phone", sh.Phone},
		{"line1", sh.Line1},
		{"city", sh.City},
		{"postal_code", sh.PostalCode},
		{"country", sh.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperr.Validation("shipping %s is required", r.field).With("field", r.field)
		}
	}
	if _, err := mail.ParseAddress(sh.Email); err != nil {
		return apperr.Validation("shipping email %q is not valid", sh.Email).With("field", "email")
	}

	if _, err := domain.ParsePaymentMethod(string(in.PaymentMethod)); err != nil {
		return apperr.Validation("%v", err).With("field", "payment_method")
	}
	if in.Declared.TotalCents < 0 {
		return apperr.Validation("total must not be negative")
	}
	return nil
}
