package flow_go

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Future is a write-once, concurrency-safe completion handle.
//
// A Future is completed exactly once; later completion attempts are rejected
// instead of panicking.  Listeners registered with OnComplete run on the goroutine
// that completes the Future (or immediately, when it is already complete), so
// composing handles never parks an executor goroutine.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	listeners []func(T, error)
}

// NewFuture returns an incomplete Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v, nil)
	return f
}

// Failed returns a Future already completed with v and err.
func Failed[T any](v T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v, err)
	return f
}

// Complete settles the Future.  A value may accompany an error.  It returns false
// when the Future was already complete.
func (f *Future[T]) Complete(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = v
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(v, err)
	}
	return true
}

// OnComplete registers fn to run once the Future completes.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Done returns a channel closed when the Future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the Future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future completes and returns its outcome.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Get blocks until the Future completes or ctx is done.  When ctx fires first the
// zero value and ctx.Err() are returned; the Future itself keeps running.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Join returns a Future that completes once every input has completed.  It fails
// with the joined errors of the failed inputs, in input order.
func Join[T any](fs ...*Future[T]) *Future[struct{}] {
	if len(fs) == 0 {
		return Resolved(struct{}{})
	}

	joined := NewFuture[struct{}]()
	errs := make([]error, len(fs))
	var remaining atomic.Int64
	remaining.Store(int64(len(fs)))

	for i, f := range fs {
		f.OnComplete(func(_ T, err error) {
			// Each slot is written by exactly one listener; the atomic decrement
			// publishes it to whichever listener observes zero.
			errs[i] = err
			if remaining.Add(-1) == 0 {
				joined.Complete(struct{}{}, errors.Join(errs...))
			}
		})
	}
	return joined
}
