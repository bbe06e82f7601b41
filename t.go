package gest

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"

	"gest/expect"
	"gest/internal/domain"
	"gest/internal/execution"
)

// Done is the completion signal of a callback test. Calling it with a
// non-nil error fails the test. Only the first call counts.
type Done func(err ...error)

// T is the handle a test body uses to make assertions.
type T struct {
	name string
	log  *log.Entry

	mu            sync.Mutex
	ctx           context.Context
	attempt       *execution.Attempt
	active        bool
	count         int
	expected      int
	counted       bool
	hasAssertions bool
}

func newT(tc *testCase, path []string) *T {
	name := domain.JoinName(path, tc.name)
	return &T{
		name:     name,
		log:      log.WithField("test", name),
		ctx:      context.Background(),
		expected: tc.opts.assertions,
		counted:  tc.opts.counted,
	}
}

// bind attaches the running attempt.
func (t *T) bind(ctx context.Context, a *execution.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx = ctx
	t.attempt = a
	t.active = true
}

// finish detaches the attempt and returns the number of assertions made
// while the test was active.
func (t *T) finish() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	return t.count
}

// Name returns the full name of the test.
func (t *T) Name() string {
	return t.name
}

// Context is cancelled when the test finishes or times out.
func (t *T) Context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

// Logger returns a logger tagged with the test name.
func (t *T) Logger() *log.Entry {
	return t.log
}

// Expect wraps subject for a matcher call.
func (t *T) Expect(subject any) expect.Assertion {
	return expect.That(t, subject)
}

// Record counts one matcher call.
func (t *T) Record() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		err := &ConfigError{Name: t.name, Reason: "assertion made outside an active test"}
		t.log.WithError(err).Warn("Ignoring assertion")
		return
	}
	t.count++
}

// Fatal fails the test with err and stops the calling goroutine.
func (t *T) Fatal(err error) {
	t.mu.Lock()
	a := t.attempt
	t.mu.Unlock()
	if a == nil || !a.Settle(err) {
		t.log.WithError(err).Warn("Failure after the test finished is ignored")
	}
	runtime.Goexit()
}

// Fatalf is Fatal with a formatted message.
func (t *T) Fatalf(format string, args ...any) {
	t.Fatal(fmt.Errorf(format, args...))
}

// Assertions declares how many matcher calls the body must make.
func (t *T) Assertions(n int) {
	if n < 0 {
		t.Fatal(&ConfigError{Name: t.name, Reason: fmt.Sprintf("expected assertion count must not be negative, got %d", n)})
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expected = n
	t.counted = true
}

// HasAssertions requires the body to make at least one matcher call.
func (t *T) HasAssertions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasAssertions = true
}

func (t *T) done() Done {
	return func(errs ...error) {
		var err error
		for _, e := range errs {
			if e != nil {
				err = e
				break
			}
		}
		t.mu.Lock()
		a := t.attempt
		t.mu.Unlock()
		if !a.Settle(err) {
			t.log.Debug("Ignoring repeated completion signal")
		}
	}
}

// checkCount compares the assertions made against the declared count.
func (t *T) checkCount(actual int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counted && actual != t.expected {
		return &AssertionCountError{Expected: t.expected, Actual: actual}
	}
	if t.hasAssertions && actual == 0 {
		return &AssertionCountError{Expected: -1, Actual: actual}
	}
	return nil
}
