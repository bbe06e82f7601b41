// Package gest is a small test runner with describe blocks, lifecycle hooks,
// expectation matchers and three ways for a test to finish: by returning, by
// calling a completion callback, or by returning a deferred value.
//
// Tests are registered on an explicit Suite and executed one at a time, in
// registration order:
//
//	s := gest.New()
//	s.Test("two plus two is four", func(t *gest.T) {
//		t.Expect(2 + 2).ToBe(4)
//	})
//	s.Describe("with setup", func(g *gest.Group) {
//		var msg string
//		g.BeforeAll(func(ctx context.Context) error {
//			msg = "hello world"
//			return nil
//		})
//		g.Test("message", func(t *gest.T) {
//			t.Expect(msg).ToMatch("hello")
//		})
//	})
//	gest.Main(s)
package gest

import (
	"sync"
	"time"

	"gest/internal/config"
	"gest/internal/domain"
)

// Run result types.
type (
	Report      = domain.Report
	TestResult  = domain.TestResult
	HookFailure = domain.HookFailure
	Status      = domain.Status
	ErrorKind   = domain.ErrorKind
	RunOptions  = domain.RunOptions
	Observer    = domain.Observer
	Node        = domain.Node
)

const (
	StatusPassed  = domain.StatusPassed
	StatusFailed  = domain.StatusFailed
	StatusPending = domain.StatusPending

	KindAssertion     = domain.KindAssertion
	KindThrown        = domain.KindThrown
	KindRejected      = domain.KindRejected
	KindTimeout       = domain.KindTimeout
	KindConfiguration = domain.KindConfiguration
)

// Suite is the registry of groups, tests and hooks for one run. Its embedded
// root Group receives declarations made outside any Describe.
type Suite struct {
	*Group

	timeout time.Duration

	mu         sync.Mutex
	running    bool
	configErrs []error
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithTimeout sets the default bound for every test body and hook. Zero
// disables the bound.
func WithTimeout(d time.Duration) SuiteOption {
	return func(s *Suite) {
		s.timeout = d
	}
}

// New creates an empty Suite.
func New(opts ...SuiteOption) *Suite {
	s := &Suite{timeout: config.DefaultTimeout}
	s.Group = &Group{suite: s, opts: defaultOptions()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the default bound for bodies and hooks.
func (s *Suite) Timeout() time.Duration {
	return s.timeout
}

// ConfigErrors returns the registration problems found so far.
func (s *Suite) ConfigErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.configErrs...)
}

func (s *Suite) addConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configErrs = append(s.configErrs, err)
}

func (s *Suite) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tree describes the registered groups and tests.
func (s *Suite) Tree() Node {
	return s.Group.node()
}
