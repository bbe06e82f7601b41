package gest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gest/future"
)

func run(t *testing.T, s *Suite, opts ...func(*RunOptions)) *Report {
	t.Helper()
	var ro RunOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return s.Run(context.Background(), ro)
}

func result(t *testing.T, r *Report, fullName string) TestResult {
	t.Helper()
	for _, res := range r.Results {
		if res.FullName() == fullName {
			return res
		}
	}
	t.Fatalf("no result named %q in %+v", fullName, r.Results)
	return TestResult{}
}

func TestHooks_RunCounts(t *testing.T) {
	s := New()
	var beforeAll, beforeEach, afterEach, afterAll int
	var seen []int

	s.Describe("group", func(g *Group) {
		g.BeforeAll(func(context.Context) error { beforeAll++; return nil })
		g.BeforeEach(func(context.Context) error { beforeEach++; return nil })
		g.AfterEach(func(context.Context) error { afterEach++; return nil })
		g.AfterAll(func(context.Context) error { afterAll++; return nil })

		g.Test("first", func(t *T) { seen = append(seen, beforeEach-1) })
		g.Test("second", func(t *T) { seen = append(seen, beforeEach-1) })
	})

	r := run(t, s)
	require.True(t, r.OK(), "%+v", r)
	assert.Equal(t, 1, beforeAll)
	assert.Equal(t, 2, beforeEach)
	assert.Equal(t, 2, afterEach)
	assert.Equal(t, 1, afterAll)
	assert.Equal(t, []int{0, 1}, seen)
}

func TestHooks_OrderAcrossNestedGroups(t *testing.T) {
	s := New()
	var order []string
	hook := func(name string) HookFunc {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	s.BeforeEach(hook("outer before"))
	s.AfterEach(hook("outer after"))
	s.Describe("inner", func(g *Group) {
		g.BeforeEach(hook("inner before"))
		g.AfterEach(hook("inner after"))
		g.Test("test", func(t *T) { order = append(order, "body") })
	})

	require.True(t, run(t, s).OK())
	assert.Equal(t, []string{"outer before", "inner before", "body", "inner after", "outer after"}, order)
}

func TestRun_CompletionProtocols(t *testing.T) {
	tests := []struct {
		name     string
		register func(s *Suite)
		status   Status
		kind     ErrorKind
		message  string
	}{
		{
			name: "sync pass",
			register: func(s *Suite) {
				s.Test("case", func(t *T) { t.Expect(1).ToBe(1) })
			},
			status: StatusPassed,
		},
		{
			name: "sync assertion failure",
			register: func(s *Suite) {
				s.Test("case", func(t *T) { t.Expect(1).ToBe(2) })
			},
			status:  StatusFailed,
			kind:    KindAssertion,
			message: "Expect(received).ToBe(expected)",
		},
		{
			name: "panic",
			register: func(s *Suite) {
				s.Test("case", func(t *T) { panic("boom") })
			},
			status:  StatusFailed,
			kind:    KindThrown,
			message: "boom",
		},
		{
			name: "callback pass",
			register: func(s *Suite) {
				s.TestDone("case", func(t *T, done Done) {
					go func() {
						time.Sleep(10 * time.Millisecond)
						done()
					}()
				})
			},
			status: StatusPassed,
		},
		{
			name: "callback never called",
			register: func(s *Suite) {
				s.TestDone("case", func(t *T, done Done) {})
			},
			status:  StatusFailed,
			kind:    KindTimeout,
			message: "exceeded timeout of 50ms",
		},
		{
			name: "callback with error",
			register: func(s *Suite) {
				s.TestDone("case", func(t *T, done Done) { done(errors.New("bad data")) })
			},
			status:  StatusFailed,
			kind:    KindThrown,
			message: "bad data",
		},
		{
			name: "repeated callback ignored",
			register: func(s *Suite) {
				s.TestDone("case", func(t *T, done Done) {
					done()
					done(errors.New("too late"))
				})
			},
			status: StatusPassed,
		},
		{
			name: "future resolves",
			register: func(s *Suite) {
				s.TestAsync("case", func(t *T) future.Awaitable {
					return future.New(func() (any, error) { return "ok", nil })
				})
			},
			status: StatusPassed,
		},
		{
			name: "future rejects",
			register: func(s *Suite) {
				s.TestAsync("case", func(t *T) future.Awaitable {
					return future.Reject(errors.New("error"))
				})
			},
			status:  StatusFailed,
			kind:    KindRejected,
			message: "rejected: error",
		},
		{
			name: "future never settles",
			register: func(s *Suite) {
				s.TestAsync("case", func(t *T) future.Awaitable {
					f, _, _ := future.Make()
					return f
				})
			},
			status: StatusFailed,
			kind:   KindTimeout,
		},
		{
			name: "nil future finishes immediately",
			register: func(s *Suite) {
				s.TestAsync("case", func(t *T) future.Awaitable {
					var f *future.Future
					return f
				})
			},
			status: StatusPassed,
		},
		{
			name: "assertion inside a chained callback",
			register: func(s *Suite) {
				s.TestAsync("case", func(t *T) future.Awaitable {
					return future.Resolve("jam").Then(func(v any) (any, error) {
						t.Expect(v).ToBe("peanut butter")
						return nil, nil
					})
				})
			},
			status: StatusFailed,
			kind:   KindAssertion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithTimeout(50 * time.Millisecond))
			tt.register(s)
			r := run(t, s)

			res := result(t, r, "case")
			assert.Equal(t, tt.status, res.Status, res.Message)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Contains(t, res.Message, tt.message)
		})
	}
}

func TestRun_PanicCarriesStack(t *testing.T) {
	s := New()
	s.Test("case", func(t *T) {
		var m map[string]int
		m["x"] = 1
	})

	res := result(t, run(t, s), "case")
	assert.Equal(t, KindThrown, res.Kind)
	assert.NotEmpty(t, res.Stack)
}

func TestRun_ResolvesRejects(t *testing.T) {
	s := New(WithTimeout(time.Second))
	later := func(v any, err error) *future.Future {
		return future.New(func() (any, error) {
			time.Sleep(20 * time.Millisecond)
			return v, err
		})
	}

	s.Test("resolves passes", func(t *T) {
		t.Expect(later("peanut butter", nil)).Resolves().ToBe("peanut butter")
	})
	s.Test("resolves against rejection", func(t *T) {
		t.Expect(later(nil, errors.New("error"))).Resolves().ToBe("peanut butter")
	})
	s.Test("rejects passes", func(t *T) {
		t.Expect(later(nil, errors.New("error"))).Rejects().ToMatch("error")
	})
	s.Test("rejects against resolution", func(t *T) {
		t.Expect(later("peanut butter", nil)).Rejects().ToMatch("error")
	})

	r := run(t, s)
	assert.Equal(t, StatusPassed, result(t, r, "resolves passes").Status)
	assert.Equal(t, StatusPassed, result(t, r, "rejects passes").Status)

	res := result(t, r, "resolves against rejection")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindRejected, res.Kind)

	res = result(t, r, "rejects against resolution")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindAssertion, res.Kind)
	assert.Contains(t, res.Message, "resolved instead of rejected")
}

func TestRun_ResolvesHonoursTimeout(t *testing.T) {
	s := New(WithTimeout(30 * time.Millisecond))
	s.Test("case", func(t *T) {
		f, _, _ := future.Make()
		t.Expect(f).Resolves().ToBe("never")
	})

	res := result(t, run(t, s), "case")
	assert.Equal(t, KindTimeout, res.Kind)
}

func TestRun_AssertionCounts(t *testing.T) {
	s := New()
	s.Test("declared and met", func(t *T) {
		t.Expect(1).ToBe(1)
	}, Assertions(1))
	s.Test("declared and missed", func(t *T) {}, Assertions(1))
	s.Test("declared in body", func(t *T) {
		t.Assertions(2)
		t.Expect(1).ToBe(1)
	})
	s.Test("has assertions", func(t *T) {
		t.HasAssertions()
	})
	s.Test("zero declared", func(t *T) {}, Assertions(0))

	r := run(t, s)
	assert.Equal(t, StatusPassed, result(t, r, "declared and met").Status)
	assert.Equal(t, StatusPassed, result(t, r, "zero declared").Status)

	res := result(t, r, "declared and missed")
	assert.Equal(t, KindAssertion, res.Kind)
	assert.Equal(t, "expected 1 assertion to be called but received 0 assertion calls", res.Message)

	res = result(t, r, "declared in body")
	assert.Equal(t, "expected 2 assertions to be called but received 1 assertion call", res.Message)

	res = result(t, r, "has assertions")
	assert.Contains(t, res.Message, "at least one assertion")
}

func TestRun_ConfigErrorsAbort(t *testing.T) {
	tests := []struct {
		name     string
		register func(s *Suite)
	}{
		{"duplicate hook", func(s *Suite) {
			s.BeforeEach(func(context.Context) error { return nil })
			s.BeforeEach(func(context.Context) error { return nil })
		}},
		{"negative assertion count", func(s *Suite) {
			s.Test("case", func(t *T) {}, Assertions(-1))
		}},
		{"assertions on a group", func(s *Suite) {
			s.Describe("group", func(g *Group) {}, Assertions(1))
		}},
		{"nil body", func(s *Suite) {
			s.Test("case", nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			var ran atomic.Bool
			s.Test("valid", func(t *T) { ran.Store(true) })
			tt.register(s)

			r := run(t, s)
			assert.Len(t, r.ConfigErrors, 1)
			assert.Empty(t, r.Results)
			assert.False(t, ran.Load(), "no test may run")
			assert.Equal(t, 1, r.ExitCode())
		})
	}
}

func TestRun_CleanupAfterFailure(t *testing.T) {
	s := New()
	var afterEach, afterAll int
	s.Describe("group", func(g *Group) {
		g.AfterEach(func(context.Context) error { afterEach++; return nil })
		g.AfterAll(func(context.Context) error { afterAll++; return errors.New("teardown failed") })
		g.Test("fails", func(t *T) { t.Expect(true).ToBe(false) })
		g.Test("passes", func(t *T) {})
	})

	r := run(t, s)
	assert.Equal(t, 2, afterEach)
	assert.Equal(t, 1, afterAll)
	assert.Equal(t, StatusFailed, result(t, r, "group > fails").Status)
	assert.Equal(t, StatusPassed, result(t, r, "group > passes").Status)
	require.Len(t, r.HookFailures, 1)
	assert.Equal(t, "afterAll", r.HookFailures[0].Hook)
	assert.Equal(t, []string{"group"}, r.HookFailures[0].Path)
	assert.False(t, r.OK())
}

func TestRun_HookFailures(t *testing.T) {
	t.Run("beforeAll fails every test in the group", func(t *testing.T) {
		s := New()
		var bodies, afterAll int
		s.Describe("group", func(g *Group) {
			g.BeforeAll(func(context.Context) error { return errors.New("no database") })
			g.AfterAll(func(context.Context) error { afterAll++; return nil })
			g.Test("a", func(t *T) { bodies++ })
			g.Describe("nested", func(g *Group) {
				g.Test("b", func(t *T) { bodies++ })
			})
		})
		s.Test("outside", func(t *T) { bodies++ })

		r := run(t, s)
		assert.Equal(t, 1, bodies)
		assert.Equal(t, 1, afterAll)
		for _, name := range []string{"group > a", "group > nested > b"} {
			res := result(t, r, name)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Contains(t, res.Message, "no database")
		}
		assert.Equal(t, StatusPassed, result(t, r, "outside").Status)
	})

	t.Run("beforeEach failure skips the body", func(t *testing.T) {
		s := New()
		var body, afterEach int
		s.BeforeEach(func(context.Context) error { panic("setup exploded") })
		s.AfterEach(func(context.Context) error { afterEach++; return nil })
		s.Test("case", func(t *T) { body++ })

		res := result(t, run(t, s), "case")
		assert.Equal(t, 0, body)
		assert.Equal(t, 1, afterEach)
		assert.Equal(t, KindThrown, res.Kind)
		assert.Contains(t, res.Message, "beforeEach hook")
	})

	t.Run("afterEach failure fails a passing test", func(t *testing.T) {
		s := New()
		s.AfterEach(func(context.Context) error { return errors.New("leak") })
		s.Test("case", func(t *T) {})

		res := result(t, run(t, s), "case")
		assert.Equal(t, StatusFailed, res.Status)
		assert.Contains(t, res.Message, "leak")
	})

	t.Run("hook timeout", func(t *testing.T) {
		s := New(WithTimeout(30 * time.Millisecond))
		s.BeforeEach(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		s.Test("case", func(t *T) {})

		res := result(t, run(t, s), "case")
		assert.Equal(t, KindTimeout, res.Kind)
	})
}

func TestRun_Selection(t *testing.T) {
	register := func(s *Suite) {
		s.Test("plain", func(t *T) {})
		s.Test("skipped", func(t *T) {}, Skip())
		s.Todo("later")
		s.Describe("block", func(g *Group) {
			g.Test("counter is 0", func(t *T) {})
			g.Test("counter is 1", func(t *T) {})
		})
	}

	tests := []struct {
		name    string
		extra   func(s *Suite)
		opts    func(*RunOptions)
		passed  []string
		pending map[string]string
	}{
		{
			name:    "default",
			passed:  []string{"plain", "block > counter is 0", "block > counter is 1"},
			pending: map[string]string{"skipped": "skipped", "later": "todo"},
		},
		{
			name:    "filter",
			opts:    func(o *RunOptions) { o.Filter = "*counter*" },
			passed:  []string{"block > counter is 0", "block > counter is 1"},
			pending: map[string]string{"plain": "filtered", "skipped": "skipped", "later": "todo"},
		},
		{
			name:    "names",
			opts:    func(o *RunOptions) { o.Names = map[string]struct{}{"block > counter is 1": {}} },
			passed:  []string{"block > counter is 1"},
			pending: map[string]string{"plain": "filtered", "block > counter is 0": "filtered"},
		},
		{
			name: "groups",
			opts: func(o *RunOptions) {
				o.Names = map[string]struct{}{"plain": {}}
				o.Groups = [][]string{{"block"}}
			},
			passed:  []string{"plain", "block > counter is 0", "block > counter is 1"},
			pending: map[string]string{"skipped": "skipped", "later": "todo"},
		},
		{
			name:    "root group selects everything",
			opts:    func(o *RunOptions) { o.Groups = [][]string{{}} },
			passed:  []string{"plain", "block > counter is 0", "block > counter is 1"},
			pending: map[string]string{"skipped": "skipped"},
		},
		{
			name: "only",
			extra: func(s *Suite) {
				s.Test("focused", func(t *T) {}, Only())
			},
			passed:  []string{"focused"},
			pending: map[string]string{"plain": "skipped", "block > counter is 0": "skipped"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			register(s)
			if tt.extra != nil {
				tt.extra(s)
			}
			var opts []func(*RunOptions)
			if tt.opts != nil {
				opts = append(opts, tt.opts)
			}
			r := run(t, s, opts...)
			require.True(t, r.OK())

			for _, name := range tt.passed {
				assert.Equal(t, StatusPassed, result(t, r, name).Status, name)
			}
			for name, reason := range tt.pending {
				res := result(t, r, name)
				assert.Equal(t, StatusPending, res.Status, name)
				assert.Equal(t, reason, res.Reason, name)
			}
		})
	}
}

func TestRun_RerunAfterHookFailure(t *testing.T) {
	s := New()
	var afterAll int
	s.Test("outside", func(t *T) {})
	s.Describe("G", func(g *Group) {
		g.AfterAll(func(context.Context) error { afterAll++; return errors.New("teardown failed") })
		g.Test("inside", func(t *T) {})
	})

	first := run(t, s)
	require.False(t, first.OK())
	out := first.Output()
	assert.Empty(t, out.FailedNames(), "hook failures are not test names")
	assert.Equal(t, [][]string{{"G"}}, out.FailedGroups())

	again := run(t, s, func(o *RunOptions) {
		o.Names = out.FailedNames()
		o.Groups = out.FailedGroups()
	})
	assert.False(t, again.OK(), "the hook runs again and fails again")
	assert.Equal(t, 2, afterAll)
	require.Len(t, again.HookFailures, 1)
	assert.Equal(t, StatusPassed, result(t, again, "G > inside").Status)
	assert.Equal(t, "filtered", result(t, again, "outside").Reason)
}

func TestRun_FailFast(t *testing.T) {
	s := New()
	var afterAll int
	s.Test("first", func(t *T) { t.Fatalf("stop here") })
	s.Describe("group", func(g *Group) {
		g.AfterAll(func(context.Context) error { afterAll++; return nil })
		g.Test("second", func(t *T) {})
	})
	s.Test("third", func(t *T) {})

	r := run(t, s, func(o *RunOptions) { o.FailFast = true })
	assert.Equal(t, StatusFailed, result(t, r, "first").Status)
	assert.Equal(t, "bail", result(t, r, "group > second").Reason)
	assert.Equal(t, "bail", result(t, r, "third").Reason)
	assert.Zero(t, afterAll, "hooks of skipped groups do not run")
}

func TestRun_Timeouts(t *testing.T) {
	s := New(WithTimeout(20 * time.Millisecond))
	slow := func(t *T) { time.Sleep(60 * time.Millisecond) }
	s.Test("default bound", slow)
	s.Test("test override", slow, Timeout(time.Second))
	s.Describe("group", func(g *Group) {
		g.Test("group override", slow)
	}, Timeout(time.Second))

	r := run(t, s)
	assert.Equal(t, KindTimeout, result(t, r, "default bound").Kind)
	assert.Equal(t, StatusPassed, result(t, r, "test override").Status)
	assert.Equal(t, StatusPassed, result(t, r, "group > group override").Status)

	t.Run("run option disables the bound", func(t *testing.T) {
		r := run(t, s, func(o *RunOptions) { o.NoTimeout = true })
		assert.Equal(t, StatusPassed, result(t, r, "default bound").Status)
	})
}

func TestRun_TimeoutReleasesContext(t *testing.T) {
	s := New(WithTimeout(20 * time.Millisecond))
	released := make(chan struct{})
	s.Test("case", func(t *T) {
		<-t.Context().Done()
		close(released)
	})

	assert.Equal(t, KindTimeout, result(t, run(t, s), "case").Kind)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("body context was not cancelled")
	}
}

type recordingObserver struct {
	total    int
	finished []string
	report   *Report
}

func (o *recordingObserver) RunStarted(total int)        { o.total = total }
func (o *recordingObserver) TestFinished(res TestResult) { o.finished = append(o.finished, res.FullName()) }
func (o *recordingObserver) RunFinished(r *Report)       { o.report = r }

func TestRun_ObserverAndReport(t *testing.T) {
	s := New()
	s.Test("a", func(t *T) {})
	s.Describe("g", func(g *Group) {
		g.Test("b", func(t *T) { t.Expect([]int{1, 2}).ToEqual([]int{1, 3}) })
	})
	s.Todo("c")

	obs := &recordingObserver{}
	r := run(t, s, func(o *RunOptions) { o.Observer = obs })

	assert.Equal(t, 3, obs.total)
	assert.Equal(t, []string{"a", "g > b", "c"}, obs.finished)
	assert.Same(t, r, obs.report)
	assert.NotEmpty(t, r.RunID)

	passed, failed, pending := r.Counts()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{passed, failed, pending})
	assert.Equal(t, 1, r.ExitCode())
	assert.NotEmpty(t, result(t, r, "g > b").Diff)
}

func TestRun_DeclarationsDuringRunIgnored(t *testing.T) {
	s := New()
	s.Test("registers", func(t *T) {
		s.Test("late", func(t *T) {})
	})

	r := run(t, s)
	assert.Len(t, r.Results, 1)
	assert.Empty(t, s.ConfigErrors())
	assert.Len(t, s.Tree().Children, 1)
}

func TestSuite_Tree(t *testing.T) {
	s := New()
	s.Test("a", func(t *T) {})
	s.Describe("g", func(g *Group) {
		g.Test("b", func(t *T) {}, Skip())
		g.Todo("c")
	})

	tree := s.Tree()
	require.Len(t, tree.Children, 2)
	assert.True(t, tree.Children[0].Test)
	g := tree.Children[1]
	assert.Equal(t, "g", g.Name)
	assert.False(t, g.Test)
	require.Len(t, g.Children, 2)
	assert.True(t, g.Children[0].Pending)
	assert.True(t, g.Children[1].Pending)
}
