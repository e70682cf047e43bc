package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
)

// EventHandler consumes events from the bus. Errors are logged by the bus and never propagate.
type EventHandler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// EventBus decouples primary mutations from their side effects. Publish never blocks: when the
// buffer is full or the bus is closed the event is logged and dropped.
type EventBus struct {
	handler EventHandler
	log     *logger.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	events  chan domain.Event
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewEventBus starts workers goroutines that dispatch events to handler.
func NewEventBus(handler EventHandler, log *logger.Logger, buffer, workers int) *EventBus {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 1
	}
	b := &EventBus{
		handler: handler,
		log:     log,
		timeout: 10 * time.Second,
		events:  make(chan domain.Event, buffer),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.work()
	}
	return b
}

func (b *EventBus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.drop(event, "bus closed")
		return
	}
	select {
	case b.events <- event:
	default:
		b.drop(event, "buffer full")
	}
}

// Dropped reports how many events were discarded.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()
	b.wg.Wait()
}

// Run blocks until ctx is done and then drains the bus; it fits an errgroup.
func (b *EventBus) Run(ctx context.Context) error {
	<-ctx.Done()
	b.Close()
	return nil
}

func (b *EventBus) drop(event domain.Event, reason string) {
	b.dropped.Add(1)
	b.log.Warn("progress event dropped", "reason", reason, "event", event.Type, "user_id", event.UserID)
}

func (b *EventBus) work() {
	defer b.wg.Done()
	for event := range b.events {
		b.dispatch(event)
	}
}

func (b *EventBus) dispatch(event domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("progress event handler panicked", "event", event.Type, "user_id", event.UserID, "panic", fmt.Sprint(r))
		}
	}()
	if err := b.handler.Handle(ctx, event); err != nil {
		b.log.Warn("progress event handler failed", "event", event.Type, "user_id", event.UserID, "error", err)
	}
}
