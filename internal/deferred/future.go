// Package deferred provides a minimal future/promise pair whose continuations
// run inline on the goroutine that completes the future.
//
// Continuations registered with OnComplete (and the Then combinator built on
// it) never hop to another goroutine: they run on whichever goroutine calls
// Promise.Resolve or Promise.Reject, in registration order. A continuation
// registered after completion runs immediately on the registering goroutine.
// There is no cancellation; Await only stops the caller from waiting.
package deferred

import (
	"context"
	"fmt"
	"sync"
)

// Future is a value that becomes available later, with a result or a failure.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
}

// Promise is the write side of a Future. Only the first completion wins.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise creates a pending promise and its future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Completed returns a future already resolved with v.
func Completed[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p.f
}

// Future returns the read side of the promise.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Resolve completes the future with v. It reports whether this call won.
func (p *Promise[T]) Resolve(v T) bool { return p.f.complete(v, nil) }

// Reject completes the future with err. It reports whether this call won.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// OnComplete registers cb to run once the future completes.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Done is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result returns the outcome without blocking. ok is false while pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.settled
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a future completed with fn applied to f's value. Failures of f
// pass through without calling fn. fn runs inline on the completing goroutine;
// a panic in fn fails the returned future.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			p.Reject(err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.Reject(fmt.Errorf("deferred: continuation panicked: %v", r))
			}
		}()
		u, err := fn(v)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(u)
	})
	return p.Future()
}
