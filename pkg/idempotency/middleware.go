package idempotency

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// ScopeFunc partitions keys, typically by caller identity, so two callers
// cannot collide on the same key.
type ScopeFunc func(r *http.Request) string

// Middleware stores the first non-5xx response for each key and replays it
// for retries. Requests without the header pass through. When Redis is
// unavailable the request is served without protection.
func Middleware(log *slog.Logger, store *Store, scope ScopeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := r.Header.Get(HeaderKey)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := store.Key(scope(r), k)

			stored, err := store.Begin(r.Context(), key)
			switch {
			case errors.Is(err, ErrInFlight):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":{"kind":"conflict","message":"a request with this idempotency key is still in progress"}}`))
				return
			case err != nil:
				log.Warn("idempotency store unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			case stored != nil:
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			detached := func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			}
			release := func() {
				ctx, cancel := detached()
				defer cancel()
				if err := store.Release(ctx, key); err != nil {
					log.Warn("idempotency release failed", "err", err)
				}
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				// A panicking handler produced no response worth keeping.
				if p := recover(); p != nil {
					release()
					panic(p)
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				release()
				return
			}
			ctx, cancel := detached()
			defer cancel()
			resp := Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()}
			if err := store.Complete(ctx, key, resp); err != nil {
				log.Warn("idempotency store failed", "err", err)
			}
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
