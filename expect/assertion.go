// Package expect implements assertion matchers.
//
// An Assertion wraps a subject and is consumed by exactly one terminal
// matcher call. Not, Resolves and Rejects return modified copies, so an
// Assertion value can be reused without side effects:
//
//	t.Expect(value).Not().ToBe(0.3)
//	t.Expect(fetch()).Resolves().ToBe("peanut butter")
package expect

import (
	"context"
	"fmt"

	"gest/future"
)

// Recorder receives the outcome of matcher calls. Fatal must not return
// to its caller.
type Recorder interface {
	Context() context.Context
	Record()
	Fatal(err error)
}

type mode int

const (
	direct mode = iota
	resolves
	rejects
)

func (m mode) String() string {
	switch m {
	case resolves:
		return "Resolves"
	case rejects:
		return "Rejects"
	}
	return ""
}

// Assertion is an immutable {subject, negated} pair.
type Assertion struct {
	rec     Recorder
	subject any
	negated bool
	mode    mode
}

// That wraps subject for assertions reported to r.
func That(r Recorder, subject any) Assertion {
	return Assertion{rec: r, subject: subject}
}

// Not negates the next matcher.
func (a Assertion) Not() Assertion {
	a.negated = !a.negated
	return a
}

// Resolves awaits the subject and applies the next matcher to its value.
func (a Assertion) Resolves() Assertion {
	a.mode = resolves
	return a
}

// Rejects awaits the subject and applies the next matcher to its rejection
// reason.
func (a Assertion) Rejects() Assertion {
	a.mode = rejects
	return a
}

// settle resolves the value the matcher will inspect.
func (a Assertion) settle(matcher string) (any, error) {
	if a.mode == direct {
		return a.subject, nil
	}
	aw, ok := a.subject.(future.Awaitable)
	if !ok || isNil(a.subject) {
		return nil, &UsageError{Matcher: matcher, Reason: fmt.Sprintf("received value must be awaitable when using %s(), got %T", a.mode, a.subject)}
	}
	ctx := a.rec.Context()
	v, err := aw.Await(ctx)
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	switch a.mode {
	case resolves:
		if err != nil {
			return nil, &future.RejectedError{Reason: err}
		}
		return v, nil
	default:
		if err == nil {
			return nil, &AssertionError{
				Matcher:  matcher,
				Subject:  v,
				Negated:  a.negated,
				Modifier: a.mode.String(),
				Message:  fmt.Sprintf("Received value resolved instead of rejected\nResolved to value: %s", format(v)),
			}
		}
		return err, nil
	}
}

// check is the single terminal path shared by all matchers.
func (a Assertion) check(matcher string, expected []any, pred func(subject any) (bool, error)) {
	a.rec.Record()
	subject, err := a.settle(matcher)
	if err != nil {
		a.rec.Fatal(err)
		return
	}
	pass, err := pred(subject)
	if err != nil {
		a.rec.Fatal(err)
		return
	}
	if pass != a.negated {
		return
	}
	fail := &AssertionError{
		Matcher:  matcher,
		Subject:  subject,
		Expected: expected,
		Negated:  a.negated,
		Modifier: a.mode.String(),
	}
	if matcher == "ToEqual" && !a.negated && len(expected) == 1 {
		fail.Diff = diff(expected[0], subject)
	}
	a.rec.Fatal(fail)
}
