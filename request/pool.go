package request

import (
	"context"
	"sync"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/logging"
	"google.golang.org/grpc/codes"
)

// ErrPoolClosed is returned when submitting to a pool after Shutdown.
var ErrPoolClosed = errors.NewC("request: pool is shut down", codes.Unavailable)

// Pool runs submitted functions on a fixed set of workers. Workers start on
// first use.
type Pool struct {
	logCtx context.Context

	mu      sync.Mutex
	wg      sync.WaitGroup
	senders sync.WaitGroup

	jobs    chan job
	quit    chan struct{}
	workers int
	started bool
	closed  bool
}

type job struct {
	ctx context.Context
	fn  func(context.Context)
}

// NewPool returns a pool with the given number of workers. Zero workers
// means one goroutine per job.
func NewPool(ctx context.Context, workers int) *Pool {
	return &Pool{
		logCtx:  logging.With(ctx, logging.FromContext(ctx).Named("pool")),
		workers: workers,
		jobs:    make(chan job, 256),
		quit:    make(chan struct{}),
	}
}

// Submit schedules fn. While the queue is full it blocks until a slot frees,
// ctx is done or the pool shuts down.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.Mark(ErrPoolClosed, 0)
	}
	if !p.started {
		for range p.workers {
			go p.worker()
		}
		p.started = true
	}
	p.wg.Add(1)
	if p.workers == 0 {
		p.mu.Unlock()
		go p.execute(job{ctx: ctx, fn: fn})
		return nil
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	select {
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return errors.WrapPrefix(ctx.Err(), "request: queue full", 0)
	case <-p.quit:
		p.wg.Done()
		return errors.Mark(ErrPoolClosed, 0)
	}
}

func (p *Pool) worker() {
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrap(r, 2)
			logging.Errorw(p.logCtx, "request: recovered from panic",
				"error", r, "error.stack_trace", err.ShortStack(0, 5))
		}
		p.wg.Done()
	}()
	j.fn(j.ctx)
}

// Shutdown stops accepting work and waits for queued jobs to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.quit)
		p.mu.Unlock()
		// Pending senders observe quit and back out before jobs closes.
		p.senders.Wait()
		close(p.jobs)
	} else {
		p.mu.Unlock()
	}
	return p.Wait(ctx)
}

// Wait blocks until all submitted jobs have finished.
func (p *Pool) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		p.wg.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return errors.New("request: timeout waiting for jobs to finish")
	}
}
