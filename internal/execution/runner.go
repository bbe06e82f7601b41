package execution

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
)

// TimeoutError reports a body or hook that did not settle within its bound.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exceeded timeout of %s", e.After)
}

// PanicError wraps a value a body panicked with.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Body is a unit of work run under a Runner. It must settle a, either
// directly or from another goroutine.
type Body func(ctx context.Context, a *Attempt)

// Runner executes bodies one at a time with a bounded wait.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner whose default bound is timeout. Zero disables
// the bound.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run starts body on its own goroutine and waits until the attempt settles,
// the bound elapses or ctx ends, whichever comes first. A positive override
// replaces the default bound. The context handed to body is cancelled when
// Run returns, so bodies blocked on it are released.
func (r *Runner) Run(ctx context.Context, override time.Duration, body Body) error {
	timeout := r.timeout
	if override > 0 {
		timeout = override
	}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, &TimeoutError{After: timeout})
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	a := NewAttempt()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				if !a.Settle(&PanicError{Value: p, Stack: debug.Stack()}) {
					log.WithField("panic", p).Warn("Panic after outcome was already recorded")
				}
			}
		}()
		body(ctx, a)
	}()

	select {
	case <-a.Done():
	case <-ctx.Done():
		a.Settle(context.Cause(ctx))
	}
	return a.Err()
}
