package request

import (
	"context"
	"sync"

	"github.com/dpup/oauthkit/errors"
)

// Future is the pending result of an asynchronous call.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	value T
	err   error
}

// Async runs fn on pool and returns its future result. Cancelling the future
// cancels the context passed to fn.
func Async[T any](ctx context.Context, pool *Pool, fn func(context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}

	err := pool.Submit(ctx, func(ctx context.Context) {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrap(r, 2)
			}
			f.resolve(v, err)
		}()
		v, err = fn(ctx)
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		f.cancel()
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks for the result or until ctx is done. Giving up on the wait does
// not cancel the call, use Cancel for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel aborts the underlying call.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Then calls fn with the result from a separate goroutine once available.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}
