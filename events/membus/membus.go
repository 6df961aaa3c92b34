// Package membus provides an in-memory implementation of events.Bus.
package membus

import (
	"context"
	"sync"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/events"
	"github.com/dpup/oauthkit/logging"
	"github.com/google/uuid"
)

// Option configures the bus.
type Option func(*Bus)

// WithWorkerPool sets the number of worker goroutines delivering events.
// Default is 8 workers. Set to 0 to use unbounded goroutines.
func WithWorkerPool(size int) Option {
	return func(b *Bus) {
		b.workers = size
	}
}

// New returns a new in-memory bus. ctx is passed to handlers.
func New(ctx context.Context, opts ...Option) *Bus {
	b := &Bus{
		subscriberCtx: logging.With(ctx, logging.FromContext(ctx).Named("events")),
		workers:       8,
		jobs:          make(chan job, 100),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type job struct {
	ctx     context.Context
	handler events.Handler
	ev      *events.Event
}

// Bus is an in-memory implementation of events.Bus.
type Bus struct {
	subscribers   map[string][]events.Handler
	subscriberCtx context.Context

	mu sync.Mutex
	wg sync.WaitGroup

	jobs    chan job
	workers int
	started bool
	closed  bool
}

var _ events.Bus = (*Bus)(nil)

// Subscribe registers a handler for topic.
func (b *Bus) Subscribe(topic string, handler events.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers == nil {
		b.subscribers = make(map[string][]events.Handler)
	}
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish sends a copy of ev to all subscribers. Events published after
// Shutdown are dropped.
func (b *Bus) Publish(topic string, ev *events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if !b.started {
		for range b.workers {
			go b.worker()
		}
		b.started = true
	}

	handlers := b.subscribers[topic]
	if len(handlers) == 0 {
		return
	}

	ctx := logging.With(b.subscriberCtx, logging.FromContext(b.subscriberCtx).Named(topic))
	for _, handler := range handlers {
		msg := *ev
		msg.ID = uuid.NewString()
		msg.Topic = topic
		if msg.Time.IsZero() {
			msg.Time = time.Now()
		}

		b.wg.Add(1)
		if b.workers == 0 {
			go b.execute(ctx, handler, &msg)
		} else {
			b.jobs <- job{ctx: ctx, handler: handler, ev: &msg}
		}
	}
}

func (b *Bus) worker() {
	for j := range b.jobs {
		b.execute(j.ctx, j.handler, j.ev)
	}
}

// Shutdown stops delivery and waits for in-flight handlers.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.jobs)
	}
	b.mu.Unlock()
	return b.Wait(ctx)
}

// Wait blocks until all pending events are delivered.
func (b *Bus) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		b.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.New("events: timeout waiting for handlers to finish")
	}
}

func (b *Bus) execute(ctx context.Context, handler events.Handler, ev *events.Event) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrap(r, 2)
			logging.Errorw(ctx, "events: recovered from panic",
				"error", r, "error.stack_trace", err.ShortStack(0, 5))
		}
		b.wg.Done()
	}()
	if err := handler(ctx, ev); err != nil {
		logging.Errorw(b.subscriberCtx, "events: handler error", "error", err, "event_id", ev.ID)
	}
}
