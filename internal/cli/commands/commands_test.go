package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gest/internal/config"
	"gest/internal/domain"
)

type fakeSuite struct {
	opts    []domain.RunOptions
	results []domain.TestResult
	hooks   []domain.HookFailure
	tree    domain.Node
}

func (f *fakeSuite) Run(ctx context.Context, opts domain.RunOptions) *domain.Report {
	f.opts = append(f.opts, opts)
	return &domain.Report{RunID: "run", StartedAt: time.Now(), Results: f.results, HookFailures: f.hooks}
}

func (f *fakeSuite) Tree() domain.Node {
	return f.tree
}

func setup(t *testing.T) string {
	color.NoColor = true
	dir := t.TempDir()
	t.Setenv("GEST_OUTPUT_DIR", dir)
	t.Setenv("GEST_STORE", "json")
	t.Setenv("GEST_TIMEOUT", "")
	return filepath.Join(dir, config.DefaultOutputJSONFile)
}

func TestExecute_Run(t *testing.T) {
	path := setup(t)

	suite := &fakeSuite{results: []domain.TestResult{
		{Name: "adds", Status: domain.StatusPassed},
		{Name: "counter", Path: []string{"block"}, Status: domain.StatusFailed, Kind: domain.KindAssertion, Message: "nope"},
	}}

	code := Execute(suite, "gest", "test", []string{"run", "--filter", "*counter*", "--fail-fast", "--timeout", "2s"})
	assert.Equal(t, 1, code)
	require.Len(t, suite.opts, 1)
	opts := suite.opts[0]
	assert.Equal(t, "*counter*", opts.Filter)
	assert.True(t, opts.FailFast)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.False(t, opts.NoTimeout)
	assert.NotNil(t, opts.Observer)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var output domain.TestResultsOutput
	require.NoError(t, json.Unmarshal(data, &output))
	assert.Equal(t, 1, output.Meta.FailedTests)
	require.Len(t, output.Details, 1)
	assert.Equal(t, "block > counter", output.Details[0].FullName)

	t.Run("rerun failed", func(t *testing.T) {
		suite.results = []domain.TestResult{{Name: "counter", Path: []string{"block"}, Status: domain.StatusPassed}}
		code := Execute(suite, "gest", "test", []string{"run", "--failed"})
		assert.Equal(t, 0, code)
		require.Len(t, suite.opts, 2)
		assert.Equal(t, map[string]struct{}{"block > counter": {}}, suite.opts[1].Names)
		assert.Zero(t, suite.opts[1].Timeout)
	})

	t.Run("nothing failed last time", func(t *testing.T) {
		code := Execute(suite, "gest", "test", []string{"run", "--failed"})
		assert.Equal(t, 0, code)
		assert.Len(t, suite.opts, 2, "suite should not run without failed tests")
	})
}

func TestExecute_RerunHookFailure(t *testing.T) {
	path := setup(t)
	suite := &fakeSuite{
		results: []domain.TestResult{{Name: "inside", Path: []string{"G"}, Status: domain.StatusPassed}},
		hooks:   []domain.HookFailure{{Path: []string{"G"}, Hook: "afterAll", Kind: domain.KindThrown, Message: "teardown failed"}},
	}

	require.Equal(t, 1, Execute(suite, "gest", "test", []string{"run"}))

	assert.Equal(t, 1, Execute(suite, "gest", "test", []string{"run", "--failed"}))
	require.Len(t, suite.opts, 2)
	assert.Empty(t, suite.opts[1].Names)
	assert.Equal(t, [][]string{{"G"}}, suite.opts[1].Groups)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var output domain.TestResultsOutput
	require.NoError(t, json.Unmarshal(data, &output))
	require.Len(t, output.Details, 1, "the stored hook failure survives the rerun")
	assert.Equal(t, domain.SourceHook, output.Details[0].Source)
}

func TestExecute_DefaultsToRun(t *testing.T) {
	setup(t)
	suite := &fakeSuite{results: []domain.TestResult{{Name: "adds", Status: domain.StatusPassed}}}

	assert.Equal(t, 0, Execute(suite, "gest", "test", nil))
	assert.Len(t, suite.opts, 1)
}

func TestExecute_TimeoutZeroDisablesBound(t *testing.T) {
	setup(t)
	t.Setenv("GEST_TIMEOUT", "0s")
	suite := &fakeSuite{}

	assert.Equal(t, 0, Execute(suite, "gest", "test", []string{"run"}))
	require.Len(t, suite.opts, 1)
	assert.True(t, suite.opts[0].NoTimeout)
}

func TestExecute_FailedWithoutPreviousRun(t *testing.T) {
	setup(t)
	suite := &fakeSuite{}

	assert.Equal(t, 1, Execute(suite, "gest", "test", []string{"run", "--failed"}))
	assert.Empty(t, suite.opts)
}

func TestExecute_InvalidStore(t *testing.T) {
	setup(t)
	suite := &fakeSuite{}

	assert.Equal(t, 1, Execute(suite, "gest", "test", []string{"run", "--store", "redis"}))
	assert.Empty(t, suite.opts)
}

func TestFilterTree(t *testing.T) {
	tree := domain.Node{Children: []domain.Node{
		{Name: "adds", Test: true},
		{Name: "block", Children: []domain.Node{
			{Name: "counter is 0", Test: true},
			{Name: "inner", Children: []domain.Node{{Name: "message", Test: true}}},
		}},
	}}

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"empty pattern keeps everything", "", []string{"adds", "block"}},
		{"matches nested test", "*counter*", []string{"block"}},
		{"matches top-level test", "adds", []string{"adds"}},
		{"no match", "*missing*", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterTree(tree, nil, tt.pattern)
			var names []string
			for _, c := range got.Children {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	t.Run("drops empty groups", func(t *testing.T) {
		got := filterTree(tree, nil, "*counter*")
		require.Len(t, got.Children, 1)
		assert.Len(t, got.Children[0].Children, 1)
	})
}
