package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

const defaultCompensationTimeout = 5 * time.Second

// Ledger takes and returns stock for whole orders. Reserve is all-or-nothing:
// when any demand cannot be met, every decrement already made in the same
// call is returned before the error surfaces.
type Ledger struct {
	log                 *slog.Logger
	store               StockStore
	tracer              trace.Tracer
	compensationTimeout time.Duration
}

func NewLedger(log *slog.Logger, store StockStore) *Ledger {
	return &Ledger{
		log:                 log,
		store:               store,
		tracer:              otel.Tracer("inventory-ledger"),
		compensationTimeout: defaultCompensationTimeout,
	}
}

func (l *Ledger) Reserve(ctx context.Context, demands []domain.Demand) ([]domain.Snapshot, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Reserve", trace.WithAttributes(attribute.Int("demands", len(demands))))
	defer span.End()

	if err := validateDemands(demands); err != nil {
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(demands))
	taken := make([]domain.Demand, 0, len(demands))
	for _, d := range demands {
		p, err := l.store.DecrementIfAvailable(ctx, d.ProductID, d.Quantity)
		if err != nil {
			span.RecordError(err)
			if cerr := l.compensate(ctx, taken); cerr != nil {
				return nil, errors.Join(err, cerr)
			}
			return nil, err
		}
		taken = append(taken, d)
		snapshots = append(snapshots, p.Snapshot(d.Quantity))
	}
	return snapshots, nil
}

// Restore puts quantities back. It is unbounded: stock may exceed any
// earlier level. Every demand is attempted even if an earlier one fails.
func (l *Ledger) Restore(ctx context.Context, demands []domain.Demand) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.Restore", trace.WithAttributes(attribute.Int("demands", len(demands))))
	defer span.End()

	var errs []error
	for _, d := range demands {
		if d.Quantity <= 0 {
			continue
		}
		if err := l.store.Increment(ctx, d.ProductID, d.Quantity); err != nil {
			l.log.Error("restore stock failed", "product_id", d.ProductID, "quantity", d.Quantity, "err", err)
			errs = append(errs, fmt.Errorf("restore %s: %w", d.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

func (l *Ledger) Stock(ctx context.Context, productID string) (domain.Product, error) {
	return l.store.Get(ctx, productID)
}

// compensate runs on a context detached from the caller's cancellation so a
// client disconnect cannot strand decremented stock.
func (l *Ledger) compensate(ctx context.Context, taken []domain.Demand) error {
	if len(taken) == 0 {
		return nil
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.compensationTimeout)
	defer cancel()

	var errs []error
	for i := len(taken) - 1; i >= 0; i-- {
		d := taken[i]
		if err := l.store.Increment(cctx, d.ProductID, d.Quantity); err != nil {
			l.log.Error("stock compensation failed", "product_id", d.ProductID, "quantity", d.Quantity, "err", err)
			errs = append(errs, fmt.Errorf("compensate %s: %w", d.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

func validateDemands(demands []domain.Demand) error {
	if len(demands) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for i, d := range demands {
		if d.ProductID == "" {
			return apperr.Validation("item %d: product id is required", i)
		}
		if d.Quantity <= 0 {
			return apperr.Validation("item %d: quantity must be positive, got %d", i, d.Quantity)
		}
	}
	return nil
}
