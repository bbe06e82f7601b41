package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"gest/internal/domain"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
	gray   = color.New(color.FgHiBlack)
)

// Formatter formats and displays output
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a Formatter writing to stdout
func NewFormatter() *Formatter {
	return NewFormatterTo(color.Output)
}

// NewFormatterTo creates a Formatter writing to out
func NewFormatterTo(out io.Writer) *Formatter {
	if out == nil {
		out = os.Stdout
	}
	return &Formatter{out: out}
}

type statRow struct {
	label string
	value string
	c     *color.Color
}

// PrintMetaStats displays the statistics of a run followed by its failures
func (f *Formatter) PrintMetaStats(output *domain.TestResultsOutput) {
	meta := output.Meta

	// Print header
	fmt.Fprintln(f.out)
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                    Test Execution Statistics                  ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	rows := []statRow{
		{"Total Tests", fmt.Sprint(meta.TotalTests), white},
		{"Passed Tests", fmt.Sprint(meta.PassedTests), green},
		{"Failed Tests", fmt.Sprint(meta.FailedTests), red},
		{"Pending Tests", fmt.Sprint(meta.PendingTests), yellow},
		{"Hook Failures", fmt.Sprint(meta.HookFailures), red},
	}
	if meta.ConfigErrors > 0 {
		rows = append(rows, statRow{"Configuration Errors", fmt.Sprint(meta.ConfigErrors), red})
	}
	rows = append(rows,
		statRow{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		statRow{"Timestamp", meta.Timestamp, white},
	)

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, row := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ ", row.label)
		row.c.Fprintf(f.out, "%-27s", row.value)
		fmt.Fprintln(f.out, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	// Print summary line
	fmt.Fprintln(f.out)
	if len(output.Details) == 0 {
		green.Fprintln(f.out, "✓ All tests passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d test(s) failed", meta.FailedTests)
	if n := meta.HookFailures + meta.ConfigErrors; n > 0 {
		red.Fprintf(f.out, ", %d hook or configuration error(s)", n)
	}
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out)
	f.printFailedTestsTree(output.Details)
}

// PrintFailures prints every failure with its message, diff and stack
func (f *Formatter) PrintFailures(failures []domain.TestFailure) {
	for _, failure := range failures {
		red.Fprintf(f.out, "● %s", failure.FullName)
		gray.Fprintf(f.out, " (%s)\n\n", failure.Kind)
		for _, line := range strings.Split(failure.Message, "\n") {
			fmt.Fprintf(f.out, "    %s\n", line)
		}
		if failure.Diff != "" {
			fmt.Fprintln(f.out)
			yellow.Fprintln(f.out, "    Difference (-expected +received):")
			for _, line := range strings.Split(strings.TrimRight(failure.Diff, "\n"), "\n") {
				fmt.Fprintf(f.out, "    %s\n", line)
			}
		}
		if len(failure.StackTrace) > 0 {
			fmt.Fprintln(f.out)
			for i, line := range failure.StackTrace {
				if i == 6 {
					gray.Fprintf(f.out, "      ... and %d more lines\n", len(failure.StackTrace)-i)
					break
				}
				gray.Fprintf(f.out, "      %s\n", line)
			}
		}
		fmt.Fprintln(f.out)
	}
}

// TreeNode is a group in the failure tree
type TreeNode struct {
	Name     string
	Children []*TreeNode
	Failures []domain.TestFailure
	Indexes  []int // Position of each failure in the input slice
}

func (n *TreeNode) child(name string) *TreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	c := &TreeNode{Name: name}
	n.Children = append(n.Children, c)
	return c
}

// BuildFailureTree groups failures under their group path, keeping
// declaration order
func BuildFailureTree(failures []domain.TestFailure) *TreeNode {
	root := &TreeNode{}
	for i, failure := range failures {
		current := root
		for _, part := range failure.GroupPath {
			current = current.child(part)
		}
		current.Failures = append(current.Failures, failure)
		current.Indexes = append(current.Indexes, i)
	}
	return root
}

// printFailedTestsTree prints a tree structure of failed tests
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	f.printTreeNode(BuildFailureTree(failures), "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	total := len(node.Failures) + len(node.Children)
	i := 0
	for _, failure := range node.Failures {
		i++
		red.Fprintf(f.out, "%s%s%s", prefix, connector(i == total), failure.TestName)
		gray.Fprintf(f.out, " [%s]\n", failure.Kind)
	}
	for _, child := range node.Children {
		i++
		last := i == total
		cyan.Fprintf(f.out, "%s%s%s\n", prefix, connector(last), child.Name)
		f.printTreeNode(child, prefix+indent(last))
	}
}

// PrintTestList prints the registered groups and tests as a tree. Tests whose
// full name is in failed are marked with [F] in red (from last run).
func (f *Formatter) PrintTestList(root domain.Node, failed map[string]struct{}) {
	total := countTests(root)
	green.Fprintf(f.out, "Found %d test(s):\n\n", total)
	f.printNode(root.Children, nil, "", failed)
}

func (f *Formatter) printNode(nodes []domain.Node, path []string, prefix string, failed map[string]struct{}) {
	for i, node := range nodes {
		last := i == len(nodes)-1
		if !node.Test {
			cyan.Fprintf(f.out, "%s%s%s\n", prefix, connector(last), node.Name)
			f.printNode(node.Children, append(path[:len(path):len(path)], node.Name), prefix+indent(last), failed)
			continue
		}

		fmt.Fprintf(f.out, "%s%s", prefix, connector(last))
		if node.Pending {
			gray.Fprintf(f.out, "%s (pending)", node.Name)
		} else {
			yellow.Fprint(f.out, node.Name)
		}
		if _, ok := failed[domain.JoinName(path, node.Name)]; ok {
			fmt.Fprint(f.out, " "+red.Sprint("[F]"))
		}
		fmt.Fprintln(f.out)
	}
}

func countTests(node domain.Node) int {
	if node.Test {
		return 1
	}
	n := 0
	for _, c := range node.Children {
		n += countTests(c)
	}
	return n
}

func connector(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}
