package gest

import (
	"context"
	"strings"
	"testing"

	"gest/internal/domain"
)

// RunGoTest runs s under go test. Each registered test is reported as a
// subtest named after its full name; hook and configuration failures fail t.
func (s *Suite) RunGoTest(t *testing.T, opts ...func(*RunOptions)) *Report {
	t.Helper()

	ctx := context.Background()
	if deadline, ok := t.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	var ro RunOptions
	for _, opt := range opts {
		opt(&ro)
	}
	report := s.Run(ctx, ro)

	for _, msg := range report.ConfigErrors {
		t.Errorf("configuration: %s", msg)
	}
	for _, res := range report.Results {
		res := res
		t.Run(res.FullName(), func(t *testing.T) {
			switch res.Status {
			case domain.StatusPending:
				t.Skip(res.Reason)
			case domain.StatusFailed:
				msg := res.Message
				if res.Diff != "" {
					msg += "\n\nDifference (-expected +received):\n" + res.Diff
				}
				if len(res.Stack) > 0 {
					msg += "\n\n" + strings.Join(res.Stack, "\n")
				}
				t.Errorf("[%s] %s", res.Kind, msg)
			}
		})
	}
	for _, hf := range report.HookFailures {
		t.Errorf("%s hook failed [%s]: %s", domain.JoinName(hf.Path, hf.Hook), hf.Kind, hf.Message)
	}
	return report
}
