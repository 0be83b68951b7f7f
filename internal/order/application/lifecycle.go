package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/storefront-fulfillment/internal/inventory/domain"
	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

// UpdateStatus is the admin entry point of the order state machine. A repeat
// of an update that already took effect changes nothing and triggers no side
// effects.
func (s *Service) UpdateStatus(ctx context.Context, id, status, trackingID string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("order_id", id), attribute.String("status", status)))
	defer span.End()

	target, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.KindInvalidStatus, "invalid target status", err)
	}

	var planned domain.Transition
	o, err := s.repo.Update(ctx, id, func(o *domain.Order) ([]domain.Event, error) {
		t, err := domain.PlanTransition(o.Status, target)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidStatus, "transition not allowed", err)
		}
		if t.SameState() && (trackingID == "" || trackingID == o.TrackingID) {
			return nil, ErrNoChange
		}
		if t.SameState() && o.Status == domain.StatusCancelled {
			return nil, apperr.Newf(apperr.KindInvalidStatus, "order %s is cancelled, its tracking id cannot change", o.ID)
		}
		planned = t
		o.Apply(t, trackingID, s.now())
		return []domain.Event{statusChanged(o, t)}, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	s.runEffects(ctx, o, planned)
	return s.settleRestock(ctx, o)
}

// ApplyPayment records a verified gateway result on the order and, when
// target is set, moves the order there. An empty target keeps the status.
// Re-applying the snapshot already stored is a no-op.
func (s *Service) ApplyPayment(ctx context.Context, id string, result domain.PaymentResult, target domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ApplyPayment", trace.WithAttributes(
		attribute.String("order_id", id), attribute.String("provider_status", result.Status)))
	defer span.End()

	var planned domain.Transition
	o, err := s.repo.Update(ctx, id, func(o *domain.Order) ([]domain.Event, error) {
		to := target
		if to == "" {
			to = o.Status
		}
		t, err := domain.PlanTransition(o.Status, to)
		if err != nil {
			// A late success for an order that can no longer move, e.g. a
			// cancelled one, is still recorded for audit.
			s.log.Warn("payment result does not move order", "order_id", o.ID, "status", o.Status, "target", to)
			t = domain.Transition{From: o.Status, To: o.Status}
		}
		if t.SameState() && o.Payment.SameAs(&result) {
			return nil, ErrNoChange
		}

		r := result
		r.UpdatedAt = s.now().UTC()
		o.Payment = &r
		events := []domain.Event{{Type: domain.EventPaymentApplied, Payload: domain.PaymentApplied{
			OrderID:       o.ID,
			TransactionID: r.TransactionID,
			Status:        r.Status,
		}}}
		if !t.SameState() {
			planned = t
			o.Apply(t, "", s.now())
			events = append(events, statusChanged(o, t))
		} else {
			o.UpdatedAt = r.UpdatedAt
		}
		return events, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	s.runEffects(ctx, o, planned)
	return s.settleRestock(ctx, o)
}

// runEffects logs a committed transition and sends its notification.
// Notification failures never undo the status change.
func (s *Service) runEffects(ctx context.Context, o domain.Order, t domain.Transition) {
	if t.To == "" || t.SameState() {
		return
	}
	s.log.Info("order status changed", "order_id", o.ID, "from", t.From, "to", t.To)
	s.notify(ctx, o, t.Template)
}

// settleRestock gives back the stock a cancelled order still owes. Lines are
// restored under the order lock and dropped from the order as they succeed,
// so a failed line is retried by the next call and a returned one never is.
// The status change itself stays committed when a line fails.
func (s *Service) settleRestock(ctx context.Context, o domain.Order) (domain.Order, error) {
	if len(o.PendingRestock) == 0 {
		return o, nil
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	var failed error
	restored := 0
	settled, err := s.repo.Update(cctx, o.ID, func(o *domain.Order) ([]domain.Event, error) {
		if len(o.PendingRestock) == 0 {
			return nil, ErrNoChange
		}
		var (
			remaining []domain.RestockLine
			errs      []error
		)
		for _, l := range o.PendingRestock {
			d := []invdomain.Demand{{ProductID: l.ProductID, Quantity: l.Quantity}}
			if err := s.inv.Restore(cctx, d); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", l.ProductID, err))
				remaining = append(remaining, l)
				continue
			}
			restored++
		}
		failed = errors.Join(errs...)
		if len(remaining) == len(o.PendingRestock) {
			return nil, ErrNoChange
		}
		o.PendingRestock = remaining
		o.UpdatedAt = s.now().UTC()
		return nil, nil
	})
	if err != nil {
		if restored > 0 {
			s.log.Error("stock returned but order not updated", "order_id", o.ID, "lines", restored, "err", err)
		}
		return domain.Order{}, fmt.Errorf("settle restock for order %s: %w", o.ID, err)
	}
	if failed != nil {
		s.log.Error("restock after cancellation failed", "order_id", o.ID, "pending", len(settled.PendingRestock), "err", failed)
		return domain.Order{}, apperr.Wrap(apperr.KindInternal, "order is cancelled but part of its stock is not returned yet", failed)
	}
	return settled, nil
}

// SettlePendingRestocks retries stock returns left over by failed attempts and
// reports how many orders were fully settled.
func (s *Service) SettlePendingRestocks(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.PendingRestocks(ctx, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			s.log.Warn("load order for restock failed", "order_id", id, "err", err)
			continue
		}
		if _, err := s.settleRestock(ctx, o); err != nil {
			continue
		}
		settled++
	}
	return settled, nil
}

// RunRestockRetries calls SettlePendingRestocks every interval until ctx ends.
func (s *Service) RunRestockRetries(ctx context.Context, interval time.Duration, batch int) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.SettlePendingRestocks(ctx, batch); err != nil {
				s.log.Error("restock retry failed", "err", err)
			}
		}
	}
}

func statusChanged(o *domain.Order, t domain.Transition) domain.Event {
	return domain.Event{Type: domain.EventOrderStatusChanged, Payload: domain.OrderStatusChanged{
		OrderID:    o.ID,
		From:       t.From,
		To:         t.To,
		TrackingID: o.TrackingID,
		At:         o.UpdatedAt,
	}}
}
