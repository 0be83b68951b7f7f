package application

import (
	"context"
	"errors"

	coupondomain "github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
	invdomain "github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
)

// ErrNoChange is returned by a Mutation to leave the stored order untouched.
var ErrNoChange = errors.New("no change")

// Mutation edits an order loaded under an exclusive lock and returns the
// events to persist with it.
type Mutation func(o *domain.Order) ([]domain.Event, error)

type OrderRepository interface {
	// Create persists o and its events atomically.
	Create(ctx context.Context, o domain.Order, events ...domain.Event) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// Update serializes mutations of one order. When fn returns ErrNoChange the
	// current order is returned with a nil error and nothing is written.
	Update(ctx context.Context, id string, fn Mutation) (domain.Order, error)
	// PendingRestocks returns ids of orders that still owe stock back, at
	// most limit of them.
	PendingRestocks(ctx context.Context, limit int) ([]string, error)
}

type Inventory interface {
	Reserve(ctx context.Context, demands []invdomain.Demand) ([]invdomain.Snapshot, error)
	Restore(ctx context.Context, demands []invdomain.Demand) error
}

type CouponValidator interface {
	Validate(ctx context.Context, code, userID string) (coupondomain.Coupon, error)
}

// Notifier hands a notification to the email collaborator. Implementations
// must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
