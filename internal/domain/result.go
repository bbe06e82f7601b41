package domain

import (
	"strings"
	"time"
)

// Status is the terminal state of a test
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// ErrorKind classifies why a test or hook failed
type ErrorKind string

const (
	KindAssertion     ErrorKind = "assertion"
	KindThrown        ErrorKind = "thrown"
	KindRejected      ErrorKind = "rejected"
	KindTimeout       ErrorKind = "timeout"
	KindConfiguration ErrorKind = "configuration"
)

// NameSeparator joins group and test names into a full test name
const NameSeparator = " > "

// JoinName builds the full name of a test from its group path and own name
func JoinName(path []string, name string) string {
	parts := make([]string, 0, len(path)+1)
	for _, p := range path {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, name)
	return strings.Join(parts, NameSeparator)
}

// TestResult is the outcome of a single test. It is created once by the
// engine and never modified afterwards.
type TestResult struct {
	Name     string        // Test's own name
	Path     []string      // Enclosing group names, outermost first
	Status   Status        // Terminal state
	Kind     ErrorKind     // Failure classification, empty unless failed
	Message  string        // Failure detail
	Diff     string        // Structural diff for equality mismatches
	Stack    []string      // Stack of a panicking body
	Reason   string        // Why a pending test did not run
	Duration time.Duration // Time spent in hooks and body
}

// FullName returns the group path and test name joined by NameSeparator
func (r TestResult) FullName() string {
	return JoinName(r.Path, r.Name)
}

// HookFailure records an afterAll hook that failed after its tests finished
type HookFailure struct {
	Path    []string
	Hook    string
	Kind    ErrorKind
	Message string
}

// Report aggregates the results of one run
type Report struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Results      []TestResult
	HookFailures []HookFailure
	ConfigErrors []string // Registration problems; no test ran when non-empty
}

// Counts returns the number of passed, failed and pending tests
func (r *Report) Counts() (passed, failed, pending int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusPending:
			pending++
		}
	}
	return passed, failed, pending
}

// OK reports whether the run had no failures of any kind
func (r *Report) OK() bool {
	_, failed, _ := r.Counts()
	return failed == 0 && len(r.HookFailures) == 0 && len(r.ConfigErrors) == 0
}

// ExitCode is 0 when the run is OK and 1 otherwise
func (r *Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Failures flattens failed tests, hook failures and configuration errors
func (r *Report) Failures() []TestFailure {
	var failures []TestFailure
	for _, msg := range r.ConfigErrors {
		failures = append(failures, TestFailure{
			TestName: "configuration",
			FullName: "configuration",
			Source:   SourceConfiguration,
			Kind:     KindConfiguration,
			Message:  msg,
		})
	}
	for _, res := range r.Results {
		if res.Status != StatusFailed {
			continue
		}
		failures = append(failures, TestFailure{
			TestName:   res.Name,
			GroupPath:  res.Path,
			FullName:   res.FullName(),
			Source:     SourceTest,
			Kind:       res.Kind,
			Message:    res.Message,
			Diff:       res.Diff,
			StackTrace: res.Stack,
		})
	}
	for _, hf := range r.HookFailures {
		failures = append(failures, TestFailure{
			TestName:  hf.Hook + " hook",
			GroupPath: hf.Path,
			FullName:  JoinName(hf.Path, hf.Hook+" hook"),
			Source:    SourceHook,
			Kind:      hf.Kind,
			Message:   hf.Message,
		})
	}
	return failures
}

// Output builds the persisted form of the report
func (r *Report) Output() TestResultsOutput {
	passed, failed, pending := r.Counts()
	return TestResultsOutput{
		Meta: TestResultsMeta{
			RunID:           r.RunID,
			TotalTests:      len(r.Results),
			PassedTests:     passed,
			FailedTests:     failed,
			PendingTests:    pending,
			HookFailures:    len(r.HookFailures),
			ConfigErrors:    len(r.ConfigErrors),
			Duration:        r.Duration.String(),
			DurationSeconds: r.Duration.Seconds(),
			Timestamp:       r.StartedAt.Format(time.RFC3339),
		},
		Details: r.Failures(),
	}
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	RunID           string  `json:"run_id"`
	TotalTests      int     `json:"total_tests"`
	PassedTests     int     `json:"passed_tests"`
	FailedTests     int     `json:"failed_tests"`
	PendingTests    int     `json:"pending_tests"`
	HookFailures    int     `json:"hook_failures"`
	ConfigErrors    int     `json:"config_errors"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}

// FailedNames returns the full names of the tests that failed in the output.
// Hook and configuration failures are not test names; see FailedGroups.
func (o *TestResultsOutput) FailedNames() map[string]struct{} {
	names := make(map[string]struct{}, len(o.Details))
	for _, d := range o.Details {
		if d.IsTest() {
			names[d.FullName] = struct{}{}
		}
	}
	return names
}

// FailedGroups returns the group paths whose every test has to run again to
// repeat the output's hook failures. A configuration error selects the root
// group, an empty path.
func (o *TestResultsOutput) FailedGroups() [][]string {
	var groups [][]string
	for _, d := range o.Details {
		switch d.Source {
		case SourceHook:
			groups = append(groups, append([]string{}, d.GroupPath...))
		case SourceConfiguration:
			groups = append(groups, []string{})
		}
	}
	return groups
}
