// Package notification hands order emails to a Sender off the request path.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/storefront-fulfillment/internal/order/domain"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher queues notifications and delivers them from a fixed worker
// pool. Notify never blocks; a full queue drops the notification.
type Dispatcher struct {
	log     *slog.Logger
	sender  Sender
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Notification
	wg     sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, sender Sender, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	d := &Dispatcher{
		log:     log,
		sender:  sender,
		timeout: cfg.SendTimeout,
		queue:   make(chan domain.Notification, cfg.QueueSize),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}
	return d
}

func (d *Dispatcher) Notify(_ context.Context, n domain.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for the queue to drain or
// ctx to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.send(n)
	}
}

func (d *Dispatcher) send(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, n); err != nil {
		d.log.Warn("notification send failed", "order_id", n.Order.ID, "template", n.Template, "err", err)
		return
	}
	d.log.Debug("notification sent", "order_id", n.Order.ID, "template", n.Template)
}
