// Package idempotency replays responses to retried requests that carry the
// same Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

// Response is the stored outcome of a completed request.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

type Store struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *Store) Key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", s.prefix, scope, key)
}

// Begin claims key. It returns the stored response when the key already
// completed, ErrInFlight when it is claimed but unfinished, and (nil, nil)
// when the caller now owns the key.
func (s *Store) Begin(ctx context.Context, key string) (*Response, error) {
	ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; claim it again.
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if string(raw) == pendingMarker {
		return nil, ErrInFlight
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *Store) Complete(ctx context.Context, key string, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

// Release drops a claim so the request can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
