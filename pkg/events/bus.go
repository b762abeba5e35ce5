// Package events is an in-process pub/sub bus: per-run and per-sandbox
// topics plus a global "sandboxes:updates" topic, with a bounded worker pool
// for async publish so a slow or absent subscriber can never block a state
// transition, per §5 and §9 (persist-then-publish).
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is anything with a stable event-type name.
type Event interface {
	EventType() string
}

// Handler reacts to one event delivered on a topic.
type Handler func(ctx context.Context, topic string, event Event) error

// Bus is a topic-keyed publisher with synchronous and fire-and-forget modes.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	logger     *slog.Logger
	workerPool chan struct{}
	wg         sync.WaitGroup
}

// New builds a Bus. asyncSlots bounds how many PublishAsync calls may be
// in flight at once; a call that cannot get a slot within 100ms is dropped,
// not queued.
func New(logger *slog.Logger, asyncSlots int) *Bus {
	if asyncSlots <= 0 {
		asyncSlots = 10
	}
	return &Bus{
		handlers:   make(map[string][]Handler),
		logger:     logger,
		workerPool: make(chan struct{}, asyncSlots),
	}
}

// Subscribe registers a handler for every event published on topic.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish delivers event to topic's handlers concurrently and waits for all
// of them, returning the first error encountered. Use this when the caller
// must know delivery happened before moving on.
func (b *Bus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(handlers))
	for _, h := range handlers {
		wg.Add(1)
		go func(handler Handler) {
			defer wg.Done()
			if err := handler(ctx, topic, event); err != nil {
				errs <- err
			}
		}(h)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// PublishAsync delivers event without waiting for handlers. Subscribers are
// UI views that tolerate arbitrary re-delivery, so at-most-once semantics
// here (the event is dropped if the worker pool is saturated) are
// acceptable per §5.
func (b *Bus) PublishAsync(ctx context.Context, topic string, event Event) {
	select {
	case b.workerPool <- struct{}{}:
		b.wg.Add(1)
		go func() {
			defer func() {
				<-b.workerPool
				b.wg.Done()
			}()
			asyncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := b.Publish(asyncCtx, topic, event); err != nil {
				b.logger.Warn("event handler failed", "topic", topic, "event_type", event.EventType(), "error", err)
			}
		}()
	case <-time.After(100 * time.Millisecond):
		b.logger.Warn("dropping event: async worker pool saturated", "topic", topic, "event_type", event.EventType())
	}
}

// HandlerCount reports how many handlers are registered for topic, mostly
// useful in tests.
func (b *Bus) HandlerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Close waits for in-flight async publishes to finish, or ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
