package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
)

type Repository struct {
	mu      sync.RWMutex
	coupons map[string]domain.Coupon
}

func NewRepository(coupons ...domain.Coupon) *Repository {
	r := &Repository{coupons: make(map[string]domain.Coupon, len(coupons))}
	for _, c := range coupons {
		r.coupons[domain.NormalizeCode(c.Code)] = c
	}
	return r
}

func (r *Repository) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coupons[domain.NormalizeCode(code)]
	if !ok {
		return domain.Coupon{}, application.ErrNotFound
	}
	return c, nil
}
