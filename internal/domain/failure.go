package domain

// FailureSource tells what produced a TestFailure
type FailureSource string

const (
	SourceTest          FailureSource = "test"
	SourceHook          FailureSource = "hook"
	SourceConfiguration FailureSource = "configuration"
)

// TestFailure represents a failed test case or lifecycle hook
type TestFailure struct {
	TestName   string        `json:"test_name"`
	GroupPath  []string      `json:"group_path,omitempty"`
	FullName   string        `json:"full_name"`
	Source     FailureSource `json:"source,omitempty"` // Empty in files written before sources were recorded, read as a test
	Kind       ErrorKind     `json:"kind"`
	Message    string        `json:"message"`
	Diff       string        `json:"diff,omitempty"`
	StackTrace []string      `json:"stack_trace,omitempty"`
	Resolved   bool          `json:"resolved,omitempty"` // Track if failure is marked as resolved in the viewer
}

// IsTest reports whether the failure belongs to a test rather than a hook or
// the suite configuration
func (f TestFailure) IsTest() bool {
	return f.Source == "" || f.Source == SourceTest
}
