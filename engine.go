package gest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"gest/future"
	"gest/internal/discovery"
	"gest/internal/domain"
	"gest/internal/execution"
)

type engine struct {
	suite   *Suite
	runner  *execution.Runner
	opts    RunOptions
	report  *Report
	reasons map[*testCase]string // Static pending reasons, "" for runnable tests
	bailed  bool
}

// Run executes every registered test and returns the report. Configuration
// errors found during registration abort the run before any test executes.
func (s *Suite) Run(ctx context.Context, opts RunOptions) *Report {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		report.ConfigErrors = []string{"suite is already running"}
		return report
	}
	s.running = true
	configErrs := append([]error(nil), s.configErrs...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if len(configErrs) > 0 {
		for _, err := range configErrs {
			report.ConfigErrors = append(report.ConfigErrors, err.Error())
		}
		log.WithField("errors", len(configErrs)).Error("Invalid suite configuration, no tests were run")
		if opts.Observer != nil {
			opts.Observer.RunStarted(0)
			opts.Observer.RunFinished(report)
		}
		return report
	}

	timeout := s.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if opts.NoTimeout {
		timeout = 0
	}
	e := &engine{
		suite:   s,
		runner:  execution.NewRunner(timeout),
		opts:    opts,
		report:  report,
		reasons: make(map[*testCase]string),
	}
	total := e.plan(s.Group, nil, false, false, s.hasOnly(s.Group))
	if opts.Observer != nil {
		opts.Observer.RunStarted(total)
	}

	log.WithFields(log.Fields{"run": report.RunID, "tests": total}).Debug("Starting run")
	e.runGroup(ctx, s.Group, nil)
	report.Duration = time.Since(report.StartedAt)

	if opts.Observer != nil {
		opts.Observer.RunFinished(report)
	}
	return report
}

func (s *Suite) hasOnly(g *Group) bool {
	if g.opts.only {
		return true
	}
	for _, it := range g.items {
		if it.group != nil && s.hasOnly(it.group) {
			return true
		}
		if it.test != nil && it.test.opts.only {
			return true
		}
	}
	return false
}

// plan records why tests will not run and returns the number of tests.
func (e *engine) plan(g *Group, path []string, skipped, only, focused bool) int {
	skipped = skipped || g.opts.skip
	only = only || g.opts.only
	total := 0
	for _, it := range g.items {
		if it.group != nil {
			total += e.plan(it.group, append(path, it.group.name), skipped, only, focused)
			continue
		}
		tc := it.test
		total++
		name := domain.JoinName(path, tc.name)
		switch {
		case tc.kind == todoBody:
			e.reasons[tc] = "todo"
		case skipped || tc.opts.skip:
			e.reasons[tc] = "skipped"
		case focused && !only && !tc.opts.only:
			e.reasons[tc] = "skipped"
		case !discovery.MatchName(name, e.opts.Filter):
			e.reasons[tc] = "filtered"
		case !e.opts.Selects(path, name):
			e.reasons[tc] = "filtered"
		default:
			e.reasons[tc] = ""
		}
	}
	return total
}

func (e *engine) runnable(g *Group) bool {
	for _, it := range g.items {
		if it.group != nil && e.runnable(it.group) {
			return true
		}
		if it.test != nil && e.reasons[it.test] == "" {
			return true
		}
	}
	return false
}

func (e *engine) runGroup(ctx context.Context, g *Group, path []string) {
	if g.parent != nil {
		path = append(append([]string(nil), path...), g.name)
	}
	if e.bailed || !e.runnable(g) {
		e.skipGroup(g, path, nil)
		return
	}

	var setupErr error
	if h := g.hooks[beforeAll]; h != nil {
		setupErr = e.runHook(ctx, g, path, beforeAll, h)
	}

	for _, it := range g.items {
		if it.group != nil {
			if setupErr != nil {
				e.skipGroup(it.group, append(append([]string(nil), path...), it.group.name), setupErr)
				continue
			}
			e.runGroup(ctx, it.group, path)
			continue
		}
		tc := it.test
		switch {
		case e.reasons[tc] != "":
			e.record(e.pending(tc, path, e.reasons[tc]))
		case setupErr != nil:
			e.record(e.failed(tc, path, setupErr, 0))
		case e.bailed:
			e.record(e.pending(tc, path, "bail"))
		default:
			e.runTest(ctx, tc, path)
		}
	}

	if h := g.hooks[afterAll]; h != nil {
		if err := e.runHook(ctx, g, path, afterAll, h); err != nil {
			kind, _, _ := classify(err)
			e.report.HookFailures = append(e.report.HookFailures, domain.HookFailure{
				Path:    path,
				Hook:    afterAll.String(),
				Kind:    kind,
				Message: err.Error(),
			})
		}
	}
}

// skipGroup reports every test below g without running hooks. Runnable tests
// fail with cause when it is set and are pending otherwise.
func (e *engine) skipGroup(g *Group, path []string, cause error) {
	for _, it := range g.items {
		if it.group != nil {
			e.skipGroup(it.group, append(append([]string(nil), path...), it.group.name), cause)
			continue
		}
		tc := it.test
		switch reason := e.reasons[tc]; {
		case reason != "":
			e.record(e.pending(tc, path, reason))
		case cause != nil:
			e.record(e.failed(tc, path, cause, 0))
		default:
			e.record(e.pending(tc, path, "bail"))
		}
	}
}

func (e *engine) runTest(ctx context.Context, tc *testCase, path []string) {
	start := time.Now()
	chain := tc.group.chain()
	logger := log.WithField("test", domain.JoinName(path, tc.name))
	logger.Debug("Running test")

	var err error
	for _, g := range chain {
		if h := g.hooks[beforeEach]; h != nil {
			if err = e.runHook(ctx, g, g.path(), beforeEach, h); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = e.runBody(ctx, tc, path)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		g := chain[i]
		if h := g.hooks[afterEach]; h != nil {
			if hookErr := e.runHook(ctx, g, g.path(), afterEach, h); hookErr != nil && err == nil {
				err = hookErr
			}
		}
	}

	if err != nil {
		logger.WithError(err).Debug("Test failed")
		e.record(e.failed(tc, path, err, time.Since(start)))
		if e.opts.FailFast {
			e.bailed = true
		}
		return
	}
	e.record(domain.TestResult{
		Name:     tc.name,
		Path:     path,
		Status:   domain.StatusPassed,
		Duration: time.Since(start),
	})
}

func (e *engine) timeout(tc *testCase) time.Duration {
	if tc.opts.timeout > 0 {
		return tc.opts.timeout
	}
	return groupTimeout(tc.group)
}

// groupTimeout is the innermost group override, 0 when there is none.
func groupTimeout(g *Group) time.Duration {
	for ; g != nil; g = g.parent {
		if g.opts.timeout > 0 {
			return g.opts.timeout
		}
	}
	return 0
}

func (e *engine) runBody(ctx context.Context, tc *testCase, path []string) error {
	t := newT(tc, path)
	err := e.runner.Run(ctx, e.timeout(tc), func(ctx context.Context, a *execution.Attempt) {
		t.bind(ctx, a)
		switch tc.kind {
		case syncBody:
			tc.sync(t)
			a.Settle(nil)
		case doneBody:
			tc.done(t, t.done())
		case asyncBody:
			a.Settle(await(ctx, tc.async(t)))
		}
	})
	count := t.finish()
	if err != nil {
		return err
	}
	return t.checkCount(count)
}

// await waits for a test's deferred value. A rejection becomes a
// RejectedError; running out of time yields the context's cause.
func await(ctx context.Context, aw future.Awaitable) error {
	if aw == nil {
		return nil
	}
	if f, ok := aw.(*future.Future); ok && f == nil {
		return nil
	}
	_, err := aw.Await(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	var rejected *future.RejectedError
	if errors.As(err, &rejected) {
		return err
	}
	return &future.RejectedError{Reason: err}
}

func (e *engine) runHook(ctx context.Context, g *Group, path []string, kind hookKind, h HookFunc) error {
	log.WithFields(log.Fields{"hook": kind.String(), "group": domain.JoinName(path, "")}).Debug("Running hook")
	err := e.runner.Run(ctx, groupTimeout(g), func(ctx context.Context, a *execution.Attempt) {
		a.Settle(h(ctx))
	})
	if err != nil {
		return &HookError{Hook: kind.String(), Path: path, Err: err}
	}
	return nil
}

func (e *engine) pending(tc *testCase, path []string, reason string) domain.TestResult {
	return domain.TestResult{
		Name:   tc.name,
		Path:   path,
		Status: domain.StatusPending,
		Reason: reason,
	}
}

func (e *engine) failed(tc *testCase, path []string, err error, d time.Duration) domain.TestResult {
	kind, diff, stack := classify(err)
	return domain.TestResult{
		Name:     tc.name,
		Path:     path,
		Status:   domain.StatusFailed,
		Kind:     kind,
		Message:  err.Error(),
		Diff:     diff,
		Stack:    stack,
		Duration: d,
	}
}

// record stores a terminal result. Each test is recorded exactly once.
func (e *engine) record(res domain.TestResult) {
	e.report.Results = append(e.report.Results, res)
	if e.opts.Observer != nil {
		e.opts.Observer.TestFinished(res)
	}
}
