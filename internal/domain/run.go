package domain

import "time"

// RunOptions narrows and tunes a run
type RunOptions struct {
	Filter    string              // Wildcard pattern matched against full test names
	Names     map[string]struct{} // When Names or Groups is non-empty, only the selected tests run
	Groups    [][]string          // Group paths whose tests all run, in addition to Names
	FailFast  bool                // Stop after the first failed test
	Timeout   time.Duration       // Overrides the suite's default bound when positive
	NoTimeout bool                // Disables the bound for bodies and hooks
	Observer  Observer            // Receives per-test progress, may be nil
}

// Selects reports whether a test with the given group path and full name is
// selected by Names and Groups
func (o RunOptions) Selects(path []string, name string) bool {
	if len(o.Names) == 0 && len(o.Groups) == 0 {
		return true
	}
	if _, ok := o.Names[name]; ok {
		return true
	}
	for _, g := range o.Groups {
		if hasPrefix(path, g) {
			return true
		}
	}
	return false
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Observer is notified as the run progresses
type Observer interface {
	RunStarted(total int)
	TestFinished(result TestResult)
	RunFinished(report *Report)
}

// Node is a registered group or test, used for listings
type Node struct {
	Name     string
	Test     bool
	Pending  bool // Registered with Skip or Todo
	Children []Node
}
