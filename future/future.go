// Package future provides deferred values: handles to a result that becomes
// available (resolves) or fails (rejects) at some later point.
//
// A Future settles at most once; the first call to resolve or reject wins and
// every later settlement is ignored.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAbandoned is the rejection reason of a future whose producing goroutine
// exited without returning, for example through runtime.Goexit.
var ErrAbandoned = errors.New("future abandoned before settling")

// Awaitable is anything a test can wait on.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// RejectedError reports that a deferred value settled with a failure nobody
// declared as expected.
type RejectedError struct {
	Reason error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected: %v", e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Reason }

// Future is a value that will be available later.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

// Make returns a pending future together with its settle functions.
func Make() (f *Future, resolve func(any), reject func(error)) {
	f = &Future{done: make(chan struct{})}
	return f, f.resolve, f.reject
}

// New runs fn on its own goroutine and settles the future with its result.
// A panic inside fn rejects the future.
func New(fn func() (any, error)) *Future {
	f, resolve, reject := Make()
	go func() {
		returned := false
		defer func() {
			if returned {
				return
			}
			if p := recover(); p != nil {
				if err, ok := p.(error); ok {
					reject(err)
					return
				}
				reject(fmt.Errorf("panic: %v", p))
				return
			}
			reject(ErrAbandoned)
		}()
		v, err := fn()
		returned = true
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return f
}

// Resolve returns a future already settled with v.
func Resolve(v any) *Future {
	f, resolve, _ := Make()
	resolve(v)
	return f
}

// Reject returns a future already settled with err.
func Reject(err error) *Future {
	f, _, reject := Make()
	reject(err)
	return f
}

func (f *Future) resolve(v any) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

func (f *Future) reject(err error) {
	if err == nil {
		err = errors.New("rejected with nil reason")
	}
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has resolved or rejected.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done. When ctx ends first
// the returned error is the context's cause.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Then chains fn onto a successful settlement. A rejection passes through
// untouched.
func (f *Future) Then(fn func(any) (any, error)) *Future {
	return New(func() (any, error) {
		<-f.done
		if f.err != nil {
			return nil, f.err
		}
		return fn(f.value)
	})
}

// Catch chains fn onto a rejection. A successful value passes through.
func (f *Future) Catch(fn func(error) (any, error)) *Future {
	return New(func() (any, error) {
		<-f.done
		if f.err == nil {
			return f.value, nil
		}
		return fn(f.err)
	})
}
