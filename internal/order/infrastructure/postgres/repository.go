package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/application"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	salesdomain "github.com/dmehra2102/storefront-fulfillment/internal/sales/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
	"github.com/dmehra2102/storefront-fulfillment/pkg/outbox"
	"github.com/dmehra2102/storefront-fulfillment/pkg/tracing"
)

const aggregateOrder = "order"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	source string
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, source string) *Repository {
	return &Repository{log: log, pool: pool, source: source}
}

func (r *Repository) Create(ctx context.Context, o domain.Order, events ...domain.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, shipping, payment_method, payment, coupon_id, coupon_code,
			subtotal_cents, shipping_cents, discount_cents, total_cents, status, tracking_id,
			delivered_at, created_at, updated_at, pending_restock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, nullable(o.UserID), o.Shipping, o.PaymentMethod, o.Payment, nullable(o.CouponID), nullable(o.CouponCode),
		o.SubtotalCents, o.ShippingCents, o.DiscountCents, o.TotalCents, o.Status, nullable(o.TrackingID),
		o.DeliveredAt, o.CreatedAt, o.UpdatedAt, restockLines(o))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Newf(apperr.KindConflict, "order %s already exists", o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, name, price_cents, quantity, image)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, item.ProductID, item.Name, item.PriceCents, item.Quantity, item.Image)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	if err := r.writeEvents(ctx, tx, o.ID, events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return loadOrder(ctx, r.pool, id, false)
}

// Update locks the order row for the duration of fn, so concurrent mutations
// of one order are applied one after another.
func (r *Repository) Update(ctx context.Context, id string, fn application.Mutation) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := loadOrder(ctx, tx, id, true)
	if err != nil {
		return domain.Order{}, err
	}
	working := current
	events, err := fn(&working)
	if errors.Is(err, application.ErrNoChange) {
		return current, tx.Commit(ctx)
	}
	if err != nil {
		return domain.Order{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET payment=$2, status=$3, tracking_id=$4, delivered_at=$5, updated_at=$6, pending_restock=$7
		WHERE id=$1`,
		id, working.Payment, working.Status, nullable(working.TrackingID), working.DeliveredAt, working.UpdatedAt,
		restockLines(working))
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}
	if err := r.writeEvents(ctx, tx, id, events); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return working, nil
}

func (r *Repository) PendingRestocks(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM orders
		WHERE jsonb_array_length(pending_restock) > 0
		ORDER BY updated_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending restocks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan pending restocks: %w", err)
	}
	return ids, nil
}

// SalesStats aggregates orders created inside rng.
func (r *Repository) SalesStats(ctx context.Context, rng salesdomain.Range) (salesdomain.Stats, error) {
	var st salesdomain.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE coupon_id IS NOT NULL),
			COALESCE(SUM(subtotal_cents), 0)::bigint,
			COALESCE(SUM(shipping_cents), 0)::bigint,
			COALESCE(SUM(discount_cents), 0)::bigint,
			COALESCE(SUM(total_cents), 0)::bigint
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)`,
		rng.From, rng.To).
		Scan(&st.OrderCount, &st.CouponOrderCount, &st.SubtotalCents, &st.ShippingCents, &st.DiscountCents, &st.TotalCents)
	if err != nil {
		return salesdomain.Stats{}, fmt.Errorf("sales stats: %w", err)
	}
	return st, nil
}

func (r *Repository) writeEvents(ctx context.Context, q querier, orderID string, events []domain.Event) error {
	traceparent := tracing.Traceparent(ctx)
	for _, ev := range events {
		e, err := outbox.NewEvent(aggregateOrder, orderID, ev.Type, ev.Payload, map[string]string{"source": r.source}, traceparent)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
			e.AggregateType, e.AggregateID, e.Type, e.Payload, e.Headers, e.Traceparent)
		if err != nil {
			return fmt.Errorf("insert outbox %s: %w", e.Type, err)
		}
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, id string, forUpdate bool) (domain.Order, error) {
	query := `
		SELECT id, user_id, shipping, payment_method, payment, coupon_id, coupon_code,
			subtotal_cents, shipping_cents, discount_cents, total_cents, status, tracking_id,
			delivered_at, created_at, updated_at, pending_restock
		FROM orders WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		o                                        domain.Order
		userID, couponID, couponCode, trackingID *string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &userID, &o.Shipping, &o.PaymentMethod, &o.Payment, &couponID, &couponCode,
		&o.SubtotalCents, &o.ShippingCents, &o.DiscountCents, &o.TotalCents, &o.Status, &trackingID,
		&o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt, &o.PendingRestock)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.OrderNotFound(id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order: %w", err)
	}
	if len(o.PendingRestock) == 0 {
		o.PendingRestock = nil
	}
	o.UserID, o.CouponID, o.CouponCode, o.TrackingID = deref(userID), deref(couponID), deref(couponCode), deref(trackingID)
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	if o.DeliveredAt != nil {
		t := o.DeliveredAt.UTC()
		o.DeliveredAt = &t
	}

	rows, err := q.Query(ctx, `SELECT product_id, name, price_cents, quantity, image
		FROM order_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var it domain.OrderItem
		err := row.Scan(&it.ProductID, &it.Name, &it.PriceCents, &it.Quantity, &it.Image)
		return it, err
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order items: %w", err)
	}
	return o, nil
}

// restockLines never returns nil, the column holds a JSON array.
func restockLines(o domain.Order) []domain.RestockLine {
	if o.PendingRestock == nil {
		return []domain.RestockLine{}
	}
	return o.PendingRestock
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
