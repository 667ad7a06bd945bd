package faultline

import (
	"context"
	"time"
)

// Future is a pending call result: a value that becomes observable after
// zero or more suspension points. It unifies the proxy's synchronous and
// asynchronous calling conventions so delay and transform effects are
// written once for both.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Await blocks until the result is observable or ctx is cancelled.
// Cancellation surfaces as ctx.Err(), never as a successful result.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the result is observable.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

func (f *Future[T]) complete(result T, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failedFuture returns an already-completed future carrying err.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Async runs the interception pipeline for an asynchronous call. The
// wrapped method is invoked on its own goroutine; the returned future
// completes once the call has returned and every firing delay has
// elapsed, so injected latency overlaps the call instead of stacking on
// top of it. A firing Throw yields an already-failed future and the
// wrapped method never runs.
//
// Suspension is cooperative: waiting on the future or on a firing delay
// never blocks another call to the same proxy, and cancelling ctx
// surfaces as a distinct failure on the future.
func Async[T any, S any](p *Proxy[S], ctx context.Context, method string, forward func(context.Context) (T, error)) *Future[T] {
	key := Method{Interface: p.iface, Name: method}
	count := p.ledger.Increment(key)

	bound := p.byMethod[method]
	f := newFuture[T]()
	if len(bound) == 0 {
		go func() {
			f.complete(forward(ctx))
		}()
		return f
	}

	ctx, finish := p.obs.begin(ctx, p.id, key, count)
	firing := firingPolicies(bound, count)

	for _, bp := range firing {
		if bp.policy.effect.kind == effectThrow {
			err := bp.policy.effect.throwErr
			p.obs.fired(ctx, p.id, key, count, bp.policy)
			finish(err)
			return failedFuture[T](err)
		}
	}

	var wait time.Duration
	for _, bp := range firing {
		if bp.policy.effect.kind == effectDelay {
			wait += bp.policy.effect.delay
			p.obs.fired(ctx, p.id, key, count, bp.policy)
		}
	}

	go func() {
		type outcome struct {
			value T
			err   error
		}
		resCh := make(chan outcome, 1)
		go func() {
			value, err := forward(ctx)
			resCh <- outcome{value: value, err: err}
		}()

		var zero T

		// The delay gates observability of the result; the call itself is
		// already in flight.
		if wait > 0 {
			p.obs.delayed(key, wait)
			if err := sleep(ctx, wait); err != nil {
				finish(err)
				f.complete(zero, err)
				return
			}
		}

		var out outcome
		select {
		case out = <-resCh:
		case <-ctx.Done():
			finish(ctx.Err())
			f.complete(zero, ctx.Err())
			return
		}

		if out.err != nil {
			finish(out.err)
			f.complete(zero, out.err)
			return
		}

		result := any(out.value)
		for _, bp := range firing {
			if bp.policy.effect.kind != effectTransform {
				continue
			}
			p.obs.fired(ctx, p.id, key, count, bp.policy)
			var err error
			result, err = bp.policy.effect.transform(result)
			if err != nil {
				finish(err)
				f.complete(zero, err)
				return
			}
		}

		finish(nil)
		if result == nil {
			f.complete(zero, nil)
			return
		}
		f.complete(result.(T), nil)
	}()

	return f
}
