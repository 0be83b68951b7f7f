// Package shutdown ties process signals to context cancellation and drains
// components in reverse start order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Step stops one component.
type Step struct {
	Name string
	Stop func(ctx context.Context) error
}

// Drain runs steps last to first under one shared deadline. Every step runs
// even after an earlier one failed.
func Drain(log *slog.Logger, timeout time.Duration, steps ...Step) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		start := time.Now()
		if err := s.Stop(ctx); err != nil {
			log.Error("shutdown step failed", "step", s.Name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		log.Info("shutdown step done", "step", s.Name, "took", time.Since(start))
	}
	return errors.Join(errs...)
}
