package gest

import (
	"errors"
	"fmt"
	"strings"

	"gest/expect"
	"gest/future"
	"gest/internal/domain"
	"gest/internal/execution"
)

// ConfigError reports an invalid declaration. Configuration errors are
// collected during registration and abort the run before any test executes.
type ConfigError struct {
	Path   []string
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", domain.JoinName(e.Path, e.Name), e.Reason)
}

// AssertionCountError reports a test whose body made a different number of
// matcher calls than it declared.
type AssertionCountError struct {
	Expected int // -1 means "at least one"
	Actual   int
}

func (e *AssertionCountError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("expected at least one assertion to be called but received %s", calls(e.Actual))
	}
	return fmt.Sprintf("expected %s to be called but received %s", plural(e.Expected, "assertion"), calls(e.Actual))
}

func calls(n int) string {
	return plural(n, "assertion call")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// HookError wraps the failure of a lifecycle hook.
type HookError struct {
	Hook string
	Path []string
	Err  error
}

func (e *HookError) Error() string {
	where := strings.Join(e.Path, domain.NameSeparator)
	if where == "" {
		return fmt.Sprintf("%s hook: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s hook in %q: %v", e.Hook, where, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// classify maps a failure onto the run's error taxonomy.
func classify(err error) (kind domain.ErrorKind, diff string, stack []string) {
	var (
		timeout  *execution.TimeoutError
		failed   *expect.AssertionError
		usage    *expect.UsageError
		count    *AssertionCountError
		config   *ConfigError
		rejected *future.RejectedError
		panicked *execution.PanicError
	)
	switch {
	case errors.As(err, &timeout):
		return domain.KindTimeout, "", nil
	case errors.As(err, &failed):
		return domain.KindAssertion, failed.Diff, nil
	case errors.As(err, &usage), errors.As(err, &count):
		return domain.KindAssertion, "", nil
	case errors.As(err, &config):
		return domain.KindConfiguration, "", nil
	case errors.As(err, &rejected):
		return domain.KindRejected, "", nil
	case errors.As(err, &panicked):
		return domain.KindThrown, "", stackLines(panicked.Stack)
	}
	return domain.KindThrown, "", nil
}

func stackLines(stack []byte) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(stack)), "\n") {
		if line = strings.TrimRight(line, " \t"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
