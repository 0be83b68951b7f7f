package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-fulfillment/pkg/outbox"
)

// maxRetries bounds how often a failed event is offered to the relay again.
const maxRetries = 10

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch claims up to batchSize events for relayID. Rows whose lease ran
// out are claimable again.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, status, retry_count
		FROM outbox
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		   OR (status = 'failed' AND retry_count < $2)
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize, maxRetries)
	if err != nil {
		return nil, err
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Event, error) {
		var e outbox.Event
		err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &e.Headers, &e.Traceparent, &e.CreatedAt, &e.Status, &e.RetryCount)
		return e, err
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + make_interval(secs => $2) WHERE id = ANY($3)`,
		relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].RelayID = relayID
		events[i].Status = outbox.StatusInProgress
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != int64(len(ids)) {
		s.log.Warn("outbox mark sent touched fewer rows", "want", len(ids), "got", ct.RowsAffected())
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1, lease_until=NULL WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id=$3`, lease.Seconds(), ids, relayID)
	return err
}
