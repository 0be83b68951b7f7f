package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/coupon/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, `SELECT id, code FROM coupons WHERE code = $1`, code).Scan(&c.ID, &c.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}
