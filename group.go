package gest

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"gest/future"
	"gest/internal/domain"
)

// HookFunc is a lifecycle hook. Hooks wait for their own asynchronous work;
// a returned error or a panic fails the hook.
type HookFunc func(ctx context.Context) error

type hookKind int

const (
	beforeAll hookKind = iota
	afterAll
	beforeEach
	afterEach
	hookKinds
)

func (k hookKind) String() string {
	switch k {
	case beforeAll:
		return "beforeAll"
	case afterAll:
		return "afterAll"
	case beforeEach:
		return "beforeEach"
	case afterEach:
		return "afterEach"
	}
	return "unknown"
}

type bodyKind int

const (
	syncBody bodyKind = iota
	doneBody
	asyncBody
	todoBody
)

type options struct {
	skip       bool
	only       bool
	timeout    time.Duration
	assertions int
	counted    bool
}

func defaultOptions() options {
	return options{}
}

// Option adjusts a test or group at registration.
type Option func(*options)

// Skip registers the test or group as pending.
func Skip() Option {
	return func(o *options) { o.skip = true }
}

// Only focuses the run: when any test or group is registered with Only, the
// rest are reported pending.
func Only() Option {
	return func(o *options) { o.only = true }
}

// Timeout overrides the suite's bound for one test, or for every test in a
// group.
func Timeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Assertions declares how many matcher calls the test body must make.
func Assertions(n int) Option {
	return func(o *options) {
		o.assertions = n
		o.counted = true
	}
}

type testCase struct {
	name  string
	group *Group
	kind  bodyKind
	sync  func(*T)
	done  func(*T, Done)
	async func(*T) future.Awaitable
	opts  options
}

type item struct {
	test  *testCase
	group *Group
}

// Group is a named block of tests, nested groups and hooks.
type Group struct {
	suite  *Suite
	name   string
	parent *Group
	items  []item
	hooks  [hookKinds]HookFunc
	opts   options
}

// Name returns the group's name; the root group has none.
func (g *Group) Name() string {
	return g.name
}

func (g *Group) path() []string {
	if g.parent == nil {
		return nil
	}
	return append(g.parent.path(), g.name)
}

// chain returns g and its ancestors, outermost first.
func (g *Group) chain() []*Group {
	if g.parent == nil {
		return []*Group{g}
	}
	return append(g.parent.chain(), g)
}

func (g *Group) configError(name, format string, args ...any) {
	err := &ConfigError{Path: g.path(), Name: name, Reason: fmt.Sprintf(format, args...)}
	g.suite.addConfigError(err)
	log.WithError(err).Debug("Rejected declaration")
}

// registering reports whether declarations are still accepted.
func (g *Group) registering(name string) bool {
	if g.suite.isRunning() {
		log.WithField("name", domain.JoinName(g.path(), name)).
			Warn("Declaration during a run is ignored")
		return false
	}
	return true
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Describe declares a nested group. fn runs immediately and only registers.
func (g *Group) Describe(name string, fn func(g *Group), opts ...Option) {
	if !g.registering(name) {
		return
	}
	if fn == nil {
		g.configError(name, "describe block has no body")
		return
	}
	o := applyOptions(opts)
	if o.counted {
		g.configError(name, "Assertions applies to tests, not groups")
		return
	}
	child := &Group{suite: g.suite, name: name, parent: g, opts: o}
	g.items = append(g.items, item{group: child})
	fn(child)
}

func (g *Group) addTest(tc *testCase) {
	if !g.registering(tc.name) {
		return
	}
	if tc.opts.counted && tc.opts.assertions < 0 {
		g.configError(tc.name, "expected assertion count must not be negative, got %d", tc.opts.assertions)
		return
	}
	tc.group = g
	g.items = append(g.items, item{test: tc})
}

// Test declares a synchronous test. It passes when fn returns without a
// failed assertion or panic.
func (g *Group) Test(name string, fn func(t *T), opts ...Option) {
	if fn == nil {
		g.configError(name, "test has no body")
		return
	}
	g.addTest(&testCase{name: name, kind: syncBody, sync: fn, opts: applyOptions(opts)})
}

// TestDone declares a callback test. It stays pending until done is called
// or the bound elapses.
func (g *Group) TestDone(name string, fn func(t *T, done Done), opts ...Option) {
	if fn == nil {
		g.configError(name, "test has no body")
		return
	}
	g.addTest(&testCase{name: name, kind: doneBody, done: fn, opts: applyOptions(opts)})
}

// TestAsync declares a test that finishes when the value fn returns
// settles. A rejection fails the test. A nil result finishes immediately.
func (g *Group) TestAsync(name string, fn func(t *T) future.Awaitable, opts ...Option) {
	if fn == nil {
		g.configError(name, "test has no body")
		return
	}
	g.addTest(&testCase{name: name, kind: asyncBody, async: fn, opts: applyOptions(opts)})
}

// Todo declares a test that is yet to be written. It is always pending.
func (g *Group) Todo(name string) {
	g.addTest(&testCase{name: name, kind: todoBody, opts: defaultOptions()})
}

func (g *Group) hook(kind hookKind, fn HookFunc) {
	name := kind.String()
	if !g.registering(name) {
		return
	}
	if fn == nil {
		g.configError(name, "hook has no body")
		return
	}
	if g.hooks[kind] != nil {
		g.configError(name, "%s is already declared in this group", name)
		return
	}
	g.hooks[kind] = fn
}

// BeforeAll runs fn once before the group's first test.
func (g *Group) BeforeAll(fn HookFunc) { g.hook(beforeAll, fn) }

// AfterAll runs fn once after the group's last test, even after failures.
func (g *Group) AfterAll(fn HookFunc) { g.hook(afterAll, fn) }

// BeforeEach runs fn before every test in the group and its subgroups.
func (g *Group) BeforeEach(fn HookFunc) { g.hook(beforeEach, fn) }

// AfterEach runs fn after every test in the group and its subgroups, even
// after failures.
func (g *Group) AfterEach(fn HookFunc) { g.hook(afterEach, fn) }

func (g *Group) node() domain.Node {
	n := domain.Node{Name: g.name, Pending: g.opts.skip}
	for _, it := range g.items {
		if it.group != nil {
			n.Children = append(n.Children, it.group.node())
			continue
		}
		n.Children = append(n.Children, domain.Node{
			Name:    it.test.name,
			Test:    true,
			Pending: it.test.opts.skip || it.test.kind == todoBody,
		})
	}
	return n
}
