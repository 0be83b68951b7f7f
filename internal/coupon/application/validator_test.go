package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/infrastructure/memory"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

func TestValidate(t *testing.T) {
	v := application.NewValidator(memory.NewRepository(domain.Coupon{ID: "c-1", Code: "SPRING10"}))

	tests := []struct {
		name    string
		code    string
		user    string
		wantErr error
	}{
		{name: "known code", code: "SPRING10", user: "u-1"},
		{name: "case and spaces ignored", code: "  spring10 ", user: "u-1"},
		{name: "guest", code: "SPRING10", user: "", wantErr: apperr.ErrCouponRequiresAuth},
		{name: "guest with unknown code", code: "NOPE", user: "", wantErr: apperr.ErrCouponRequiresAuth},
		{name: "unknown code", code: "NOPE", user: "u-1", wantErr: apperr.ErrCouponInvalid},
		{name: "blank code", code: "   ", user: "u-1", wantErr: apperr.ErrCouponInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := v.Validate(context.Background(), tc.code, tc.user)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c-1", c.ID)
		})
	}
}

func TestValidate_RepositoryFailureIsNotACouponError(t *testing.T) {
	v := application.NewValidator(failingRepo{})

	_, err := v.Validate(context.Background(), "SPRING10", "u-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

type failingRepo struct{}

func (failingRepo) FindByCode(context.Context, string) (domain.Coupon, error) {
	return domain.Coupon{}, errors.New("db down")
}
