// Package event fans order lifecycle events out to listeners.
//
//	bus := event.NewBus(workerpool.New("events", 4))
//	bus.Listen(event.OrderPaid, func(ctx context.Context, e event.Event) { ... })
//	bus.Fire(ctx, event.Event{Name: event.OrderPaid, OrderID: 12})
//
// Listeners run off the request goroutine and must not assume the request
// is still alive.
package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/workerpool"
)

const (
	OrderPaid     = "order.paid"
	OrderFinished = "order.finished"
)

// Event describes an order state change.
type Event struct {
	Name    string    `json:"event"`
	OrderID uint      `json:"order_id"`
	UserID  uint      `json:"user_id"`
	Sum     float64   `json:"order_sum"`
	At      time.Time `json:"at"`
}

type Handler func(ctx context.Context, e Event)

// Bus dispatches events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	pool     *workerpool.Pool
}

// NewBus runs handlers on pool; a nil pool runs them inline.
func NewBus(pool *workerpool.Pool) *Bus {
	return &Bus{handlers: map[string][]Handler{}, pool: pool}
}

func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// Fire hands e to every listener of e.Name. Request cancellation does not
// reach the listeners. When the pool is saturated the handler runs inline.
func (b *Bus) Fire(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Name]...)
	b.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, h := range hs {
		h := h // per-iteration copy; go directive is 1.21
		if b.pool == nil {
			h(ctx, e)
			continue
		}
		err := b.pool.Submit(func() { h(ctx, e) })
		switch {
		case errors.Is(err, workerpool.ErrPoolFull):
			logger.WithCtx(ctx).Warn("event: pool full, running inline", "event", e.Name)
			h(ctx, e)
		case err != nil:
			logger.WithCtx(ctx).Warn("event: dropped", "event", e.Name, "error", err)
		}
	}
}

// Listeners reports how many handlers listen for name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
