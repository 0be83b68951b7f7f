package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

// Relay polls the store and publishes locked batches. Delivery is at least
// once: a crash between publish and MarkSent republishes after the lease
// runs out.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption { return func(r *Relay) { r.interval = d } }
func WithBatchSize(n int) RelayOption          { return func(r *Relay) { r.batchSize = n } }
func WithLease(d time.Duration) RelayOption    { return func(r *Relay) { r.lease = d } }

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Error("relay tick failed", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Tick publishes one batch and reports how many events were sent.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil || len(events) == 0 {
		return 0, err
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	// Publishing a large batch can outlast the lease.
	if err := r.store.ExtendLease(ctx, r.relayID, ids, r.lease); err != nil {
		r.log.Warn("relay extend lease failed", "relay_id", r.relayID, "err", err)
	}

	if err := r.dispatch.Dispatch(ctx, events...); err == nil {
		return len(ids), r.store.MarkSent(ctx, ids)
	}

	// Batch write failed; retry one by one so a single poison event does not
	// hold back the rest.
	sent := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if merr := r.store.MarkFailed(ctx, e.ID, err.Error()); merr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", merr)
			}
			continue
		}
		sent = append(sent, e.ID)
	}
	if len(sent) == 0 {
		return 0, nil
	}
	return len(sent), r.store.MarkSent(ctx, sent)
}
