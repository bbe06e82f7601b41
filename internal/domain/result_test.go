package domain

import (
	"strings"
	"testing"
	"time"
)

func TestJoinName(t *testing.T) {
	tests := []struct {
		name     string
		path     []string
		test     string
		expected string
	}{
		{"root test", nil, "adds 1 + 2", "adds 1 + 2"},
		{"root group is skipped", []string{""}, "zero", "zero"},
		{"nested", []string{"outer", "inner"}, "counter is 0", "outer > inner > counter is 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinName(tt.path, tt.test); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestReport(t *testing.T) {
	report := &Report{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Results: []TestResult{
			{Name: "a", Status: StatusPassed},
			{Name: "b", Path: []string{"G"}, Status: StatusFailed, Kind: KindAssertion, Message: "nope"},
			{Name: "c", Status: StatusPending, Reason: "skipped"},
		},
	}

	t.Run("counts", func(t *testing.T) {
		passed, failed, pending := report.Counts()
		if passed != 1 || failed != 1 || pending != 1 {
			t.Errorf("expected 1/1/1, got %d/%d/%d", passed, failed, pending)
		}
	})

	t.Run("failed run exits non-zero", func(t *testing.T) {
		if report.OK() {
			t.Error("expected report not to be OK")
		}
		if report.ExitCode() != 1 {
			t.Errorf("expected exit code 1, got %d", report.ExitCode())
		}
	})

	t.Run("output", func(t *testing.T) {
		out := report.Output()
		if out.Meta.TotalTests != 3 || out.Meta.FailedTests != 1 {
			t.Errorf("unexpected meta: %+v", out.Meta)
		}
		if out.Meta.Timestamp != "2024-01-02T03:04:05Z" {
			t.Errorf("unexpected timestamp %s", out.Meta.Timestamp)
		}
		if len(out.Details) != 1 || out.Details[0].FullName != "G > b" {
			t.Fatalf("unexpected details: %+v", out.Details)
		}
		if _, ok := out.FailedNames()["G > b"]; !ok {
			t.Error("expected failed names to contain G > b")
		}
	})

	t.Run("hook failures and config errors fail the run", func(t *testing.T) {
		r := &Report{
			Results:      []TestResult{{Name: "a", Status: StatusPassed}},
			HookFailures: []HookFailure{{Path: []string{"G"}, Hook: "afterAll", Kind: KindThrown, Message: "cleanup"}},
		}
		if r.OK() {
			t.Error("expected hook failure to fail the run")
		}
		failures := r.Failures()
		if len(failures) != 1 || failures[0].FullName != "G > afterAll hook" || failures[0].Source != SourceHook {
			t.Errorf("unexpected failures: %+v", failures)
		}

		c := &Report{ConfigErrors: []string{"duplicate beforeAll"}}
		if c.ExitCode() != 1 {
			t.Error("expected config errors to fail the run")
		}
	})

	t.Run("rerun selection", func(t *testing.T) {
		r := &Report{
			Results:      []TestResult{{Name: "b", Path: []string{"G"}, Status: StatusFailed, Kind: KindAssertion}},
			HookFailures: []HookFailure{{Path: []string{"H", "inner"}, Hook: "afterAll", Kind: KindThrown}},
			ConfigErrors: []string{"duplicate beforeAll"},
		}
		out := r.Output()

		names := out.FailedNames()
		if len(names) != 1 {
			t.Errorf("expected only the failed test, got %v", names)
		}
		if _, ok := names["G > b"]; !ok {
			t.Errorf("expected G > b in %v", names)
		}

		groups := out.FailedGroups()
		if len(groups) != 2 || len(groups[0]) != 0 || strings.Join(groups[1], "/") != "H/inner" {
			t.Errorf("unexpected groups %v", groups)
		}
	})

	t.Run("legacy failures without a source are tests", func(t *testing.T) {
		out := TestResultsOutput{Details: []TestFailure{{FullName: "old"}}}
		if _, ok := out.FailedNames()["old"]; !ok {
			t.Error("expected a failure without source to be a test")
		}
	})

	t.Run("all passed", func(t *testing.T) {
		r := &Report{Results: []TestResult{{Name: "a", Status: StatusPassed}, {Name: "b", Status: StatusPending}}}
		if !r.OK() || r.ExitCode() != 0 {
			t.Error("expected passing run to be OK")
		}
	})
}
