package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

// DecrementIfAvailable relies on the row lock taken by UPDATE: concurrent
// callers for the same product are serialized and each re-evaluates the
// stock >= $2 predicate against the committed value.
func (r *Repository) DecrementIfAvailable(ctx context.Context, productID string, qty int) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING id, name, price_cents, image, stock`, productID, qty).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Image, &p.Stock)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("decrement stock %s: %w", productID, err)
	}

	current, err := r.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{}, apperr.InsufficientStock(productID, current.Stock, qty)
}

func (r *Repository) Increment(ctx context.Context, productID string, qty int) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock %s: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ProductNotFound(productID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price_cents, image, stock FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Image, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.ProductNotFound(productID)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	return p, nil
}
