package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront-fulfillment/internal/sales/domain"
	"github.com/dmehra2102/storefront-fulfillment/pkg/apperr"
)

type StatsReader interface {
	SalesStats(ctx context.Context, r domain.Range) (domain.Stats, error)
}

type Aggregator struct {
	log    *slog.Logger
	reader StatsReader
	now    func() time.Time
}

func NewAggregator(log *slog.Logger, reader StatsReader) *Aggregator {
	return &Aggregator{log: log, reader: reader, now: time.Now}
}

// WithClock replaces the time source used to resolve relative windows.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Query selects orders by an explicit range, or by Window when neither bound
// is set. An explicit range with only Start runs until now.
type Query struct {
	Start  *time.Time
	End    *time.Time
	Window string
}

func (a *Aggregator) Stats(ctx context.Context, q Query) (domain.Stats, error) {
	r, err := a.resolve(q)
	if err != nil {
		return domain.Stats{}, err
	}
	stats, err := a.reader.SalesStats(ctx, r)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.From, stats.To = r.From, r.To
	a.log.Debug("sales stats computed", "orders", stats.OrderCount, "total_cents", stats.TotalCents)
	return stats, nil
}

func (a *Aggregator) resolve(q Query) (domain.Range, error) {
	if q.Start == nil && q.End == nil {
		w, err := domain.ParseWindow(q.Window)
		if err != nil {
			return domain.Range{}, apperr.Validation("%v", err).With("field", "window")
		}
		return w.Resolve(a.now()), nil
	}
	if q.Window != "" {
		return domain.Range{}, apperr.Validation("use either a window or start/end, not both")
	}

	r := domain.Range{From: q.Start, To: q.End}
	if r.To == nil {
		now := a.now().UTC()
		r.To = &now
	}
	if r.From != nil && r.From.After(*r.To) {
		return domain.Range{}, apperr.Validation("start must not be after end")
	}
	return r, nil
}
