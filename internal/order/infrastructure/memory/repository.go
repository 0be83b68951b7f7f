// Package memory keeps orders in process. It backs the application tests
// and local runs without Postgres.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	salesdomain "github.com/dmehra2102/storefront-fulfillment/internal/sales/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

type Repository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	events []domain.Event
}

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Create(ctx context.Context, o domain.Order, events ...domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return apperr.Newf(apperr.KindConflict, "order %s already exists", o.ID)
	}
	r.orders[o.ID] = clone(o)
	r.events = append(r.events, events...)
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, apperr.OrderNotFound(id)
	}
	return clone(o), nil
}

// Update holds the repository lock for the whole mutation, so updates of the
// same order never interleave.
func (r *Repository) Update(ctx context.Context, id string, fn application.Mutation) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[id]
	if !ok {
		return domain.Order{}, apperr.OrderNotFound(id)
	}
	working := clone(current)
	events, err := fn(&working)
	if errors.Is(err, application.ErrNoChange) {
		return clone(current), nil
	}
	if err != nil {
		return domain.Order{}, err
	}
	r.orders[id] = clone(working)
	r.events = append(r.events, events...)
	return working, nil
}

func (r *Repository) SalesStats(ctx context.Context, rng salesdomain.Range) (salesdomain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st salesdomain.Stats
	for _, o := range r.orders {
		if !rng.Contains(o.CreatedAt) {
			continue
		}
		st.Add(salesdomain.Row{
			CreatedAt:     o.CreatedAt,
			HasCoupon:     o.CouponID != "",
			SubtotalCents: o.SubtotalCents,
			ShippingCents: o.ShippingCents,
			DiscountCents: o.DiscountCents,
			TotalCents:    o.TotalCents,
		})
	}
	return st, nil
}

func (r *Repository) PendingRestocks(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, o := range r.orders {
		if len(o.PendingRestock) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Events returns every event written so far, oldest first.
func (r *Repository) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func clone(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	o.PendingRestock = slices.Clone(o.PendingRestock)
	if o.Payment != nil {
		p := *o.Payment
		p.Raw = maps.Clone(p.Raw)
		o.Payment = &p
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}
