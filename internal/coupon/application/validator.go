package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

// ErrNotFound is returned by a CouponRepository when no coupon has the code.
var ErrNotFound = errors.New("coupon not found")

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
}

type Validator struct {
	repo CouponRepository
}

func NewValidator(repo CouponRepository) *Validator {
	return &Validator{repo: repo}
}

// Validate resolves code for userID. Guests cannot redeem coupons; the check
// happens before any lookup so a guest learns nothing about which codes exist.
func (v *Validator) Validate(ctx context.Context, code, userID string) (domain.Coupon, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.Coupon{}, apperr.New(apperr.KindCouponInvalid, "coupon code is empty")
	}
	if userID == "" {
		return domain.Coupon{}, apperr.New(apperr.KindCouponRequiresAuth, "sign in to use a coupon")
	}

	c, err := v.repo.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return domain.Coupon{}, apperr.Newf(apperr.KindCouponInvalid, "coupon %s is not valid", code)
	}
	if err != nil {
		return domain.Coupon{}, err
	}
	return c, nil
}
