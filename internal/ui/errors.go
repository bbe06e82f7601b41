package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	log "github.com/sirupsen/logrus"

	"gest/internal/domain"
	"gest/internal/storage"
)

// ErrorViewer browses the failures of a run grouped by describe path
type ErrorViewer struct {
	storage storage.Storage
}

// NewErrorViewer creates a new ErrorViewer that persists resolved marks to st
func NewErrorViewer(st storage.Storage) *ErrorViewer {
	return &ErrorViewer{storage: st}
}

// failureRef is the reference of a leaf in the failure tree
type failureRef struct {
	index int
}

// groupRef is the reference of a describe block in the failure tree
type groupRef struct {
	path    []string
	indexes []int // Every failure below the group
}

// View opens the failure browser. Left pane: failures under their describe
// blocks. Right pane: the selected failure. Resolved marks are saved as
// they are toggled.
func (ev *ErrorViewer) View(results *domain.TestResultsOutput) error {
	if len(results.Details) == 0 {
		green.Println("✓ No test failures found!")
		return nil
	}

	app := tview.NewApplication()
	root := ev.buildTree(results)
	tree := tview.NewTreeView().
		SetRoot(root).
		SetCurrentNode(firstLeaf(root)).
		SetGraphics(true).
		SetGraphicsColor(tcell.ColorDarkCyan)
	tree.SetBorder(true).SetTitle(" Failures ")

	statsView := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	detailsView := tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetWordWrap(true)
	detailsView.SetBorder(true).SetTitle(" Details ")

	headerView := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)
	updateHeader := func() {
		headerView.SetText(ev.formatHeader(results))
	}

	show := func(node *tview.TreeNode) {
		if node == nil {
			return
		}
		switch ref := node.GetReference().(type) {
		case failureRef:
			failure := results.Details[ref.index]
			statsView.SetText(ev.formatFailureStats(failure, ref.index+1))
			detailsView.SetText(ev.formatFailureDetails(failure)).ScrollToBeginning()
		case groupRef:
			statsView.SetText(ev.formatGroupStats(ref))
			detailsView.SetText(ev.formatGroupDetails(results, ref)).ScrollToBeginning()
		}
	}

	toggle := func(node *tview.TreeNode) {
		if node == nil {
			return
		}
		var indexes []int
		switch ref := node.GetReference().(type) {
		case failureRef:
			indexes = []int{ref.index}
		case groupRef:
			indexes = ref.indexes
		default:
			return
		}
		// A group flips to resolved unless every failure below it already is
		mark := false
		for _, i := range indexes {
			if !results.Details[i].Resolved {
				mark = true
				break
			}
		}
		for _, i := range indexes {
			results.Details[i].Resolved = mark
		}
		refreshLabels(root, results)
		updateHeader()
		show(node)
		if err := ev.storage.SaveOutput(results); err != nil {
			log.WithError(err).Warn("Failed to save resolved status")
		}
	}

	tree.SetChangedFunc(show)
	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		if _, ok := node.GetReference().(groupRef); ok {
			node.SetExpanded(!node.IsExpanded())
			return
		}
		app.SetFocus(detailsView)
	})
	tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r', 'R':
				toggle(tree.GetCurrentNode())
				return nil
			case 'q':
				app.Stop()
				return nil
			}
		}
		return event
	})
	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(tree)
			return nil
		}
		return event
	})

	updateHeader()
	show(tree.GetCurrentNode())

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 2, 0, false).
		AddItem(detailsView, 0, 1, false)
	body := tview.NewFlex().
		AddItem(tree, 0, 1, true).
		AddItem(rightSide, 0, 2, false)
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(body, 0, 1, true)

	if err := app.SetRoot(layout, true).SetFocus(tree).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// buildTree mirrors BuildFailureTree as tview nodes. Failures come before
// nested groups, as in the printed summary.
func (ev *ErrorViewer) buildTree(results *domain.TestResultsOutput) *tview.TreeNode {
	root := tview.NewTreeNode("run " + shortID(results.Meta.RunID)).
		SetColor(tcell.ColorWhite).
		SetSelectable(false)
	addTreeNodes(root, BuildFailureTree(results.Details), nil)
	refreshLabels(root, results)
	return root
}

func addTreeNodes(parent *tview.TreeNode, node *TreeNode, path []string) []int {
	var below []int
	for _, i := range node.Indexes {
		parent.AddChild(tview.NewTreeNode("").SetReference(failureRef{index: i}))
		below = append(below, i)
	}
	for _, child := range node.Children {
		childPath := append(path[:len(path):len(path)], child.Name)
		group := tview.NewTreeNode("").SetExpanded(true)
		indexes := addTreeNodes(group, child, childPath)
		group.SetReference(groupRef{path: childPath, indexes: indexes})
		parent.AddChild(group)
		below = append(below, indexes...)
	}
	return below
}

// refreshLabels redraws every label from the current resolved marks
func refreshLabels(node *tview.TreeNode, results *domain.TestResultsOutput) {
	switch ref := node.GetReference().(type) {
	case failureRef:
		failure := results.Details[ref.index]
		node.SetText(failureLabel(failure)).SetColor(failureColor(failure))
	case groupRef:
		open := 0
		for _, i := range ref.indexes {
			if !results.Details[i].Resolved {
				open++
			}
		}
		name := tview.Escape(ref.path[len(ref.path)-1])
		if open == 0 {
			node.SetText("✓ " + name).SetColor(tcell.ColorGray)
		} else {
			node.SetText(fmt.Sprintf("%s (%d)", name, open)).SetColor(tcell.ColorDarkCyan)
		}
	}
	for _, child := range node.GetChildren() {
		refreshLabels(child, results)
	}
}

// failureLabel is the tree label of a failure. Hook and configuration
// failures carry their own marker so they stand apart from tests.
func failureLabel(f domain.TestFailure) string {
	marker := "✗"
	switch f.Source {
	case domain.SourceHook:
		marker = "⚙"
	case domain.SourceConfiguration:
		marker = "⚠"
	}
	if f.Resolved {
		marker = "✓"
	}
	return fmt.Sprintf("%s %s (%s)", marker, tview.Escape(f.TestName), f.Kind)
}

func failureColor(f domain.TestFailure) tcell.Color {
	switch {
	case f.Resolved:
		return tcell.ColorGray
	case f.Source == domain.SourceHook:
		return tcell.ColorFuchsia
	case f.Source == domain.SourceConfiguration:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

func firstLeaf(node *tview.TreeNode) *tview.TreeNode {
	for _, child := range node.GetChildren() {
		if _, ok := child.GetReference().(failureRef); ok {
			return child
		}
		if leaf := firstLeaf(child); leaf != nil {
			return leaf
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "(unknown)"
	}
	return id
}

func (ev *ErrorViewer) formatHeader(results *domain.TestResultsOutput) string {
	unresolved := 0
	for _, d := range results.Details {
		if !d.Resolved {
			unresolved++
		}
	}
	return fmt.Sprintf(" %d failure(s), %d unresolved | ↑↓ move  Enter fold/open  [yellow]r[white] resolve  → details  q quit ",
		len(results.Details), unresolved)
}

// formatFailureDetails formats a test failure for display using tview color tags ([red], [cyan], etc.)
func (ev *ErrorViewer) formatFailureDetails(failure domain.TestFailure) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	switch failure.Source {
	case domain.SourceHook:
		fmt.Fprintf(w, "[fuchsia]⚙ Hook: %s[white]\n\n", tview.Escape(failure.TestName))
	case domain.SourceConfiguration:
		fmt.Fprintf(w, "[yellow]⚠ Suite configuration, no test ran[white]\n\n")
	default:
		fmt.Fprintf(w, "[red]✗ Test: %s[white]\n\n", tview.Escape(failure.TestName))
	}

	if len(failure.GroupPath) > 0 {
		fmt.Fprintf(w, "[cyan]Group: %s[white]\n", tview.Escape(strings.Join(failure.GroupPath, domain.NameSeparator)))
	}
	fmt.Fprintf(w, "[cyan]Kind: %s[white]\n\n", failure.Kind)

	if failure.Message != "" {
		fmt.Fprintf(w, "[yellow]Message:[white]\n%s\n\n", tview.Escape(failure.Message))
	}

	if failure.Diff != "" {
		fmt.Fprintf(w, "[yellow]Difference (-expected +received):[white]\n")
		for _, line := range strings.Split(strings.TrimRight(failure.Diff, "\n"), "\n") {
			switch {
			case strings.HasPrefix(strings.TrimSpace(line), "-"):
				fmt.Fprintf(w, "[green]%s[white]\n", tview.Escape(line))
			case strings.HasPrefix(strings.TrimSpace(line), "+"):
				fmt.Fprintf(w, "[red]%s[white]\n", tview.Escape(line))
			default:
				fmt.Fprintf(w, "%s\n", tview.Escape(line))
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(failure.StackTrace) > 0 {
		fmt.Fprintf(w, "[yellow]Stack Trace:[white]\n")
		for i, trace := range failure.StackTrace {
			if i < 10 {
				fmt.Fprintf(w, "  %s\n", tview.Escape(trace))
			}
		}
		if len(failure.StackTrace) > 10 {
			fmt.Fprintf(w, "  [gray]... and %d more lines[white]\n", len(failure.StackTrace)-10)
		}
	}

	if failure.Resolved {
		fmt.Fprintf(w, "\n[gray]Marked as resolved[white]\n")
	}

	w.Flush()
	return builder.String()
}

// formatFailureStats formats the stats header for a test failure
func (ev *ErrorViewer) formatFailureStats(failure domain.TestFailure, number int) string {
	group := strings.Join(failure.GroupPath, domain.NameSeparator)
	if group == "" {
		group = "(top level)"
	}

	testCase := failure.TestName
	if testCase == "" {
		testCase = fmt.Sprintf("Test %d", number)
	}

	return fmt.Sprintf("[cyan]group:[white] [yellow]%s[white] :: [yellow]%s[white]\n", tview.Escape(group), tview.Escape(testCase))
}

func (ev *ErrorViewer) formatGroupStats(ref groupRef) string {
	return fmt.Sprintf("[cyan]group:[white] [yellow]%s[white] :: %d failure(s)\n",
		tview.Escape(strings.Join(ref.path, domain.NameSeparator)), len(ref.indexes))
}

// formatGroupDetails lists the failures below a group by source
func (ev *ErrorViewer) formatGroupDetails(results *domain.TestResultsOutput, ref groupRef) string {
	var tests, hooks []string
	for _, i := range ref.indexes {
		f := results.Details[i]
		rel := append([]string{}, f.GroupPath[len(ref.path):]...)
		line := tview.Escape(strings.Join(append(rel, f.TestName), domain.NameSeparator))
		if f.Resolved {
			line = "[gray]" + line + " (resolved)[white]"
		}
		if f.Source == domain.SourceHook {
			hooks = append(hooks, line)
		} else {
			tests = append(tests, line)
		}
	}

	var b strings.Builder
	if len(tests) > 0 {
		fmt.Fprintf(&b, "[red]Failed tests (%d):[white]\n", len(tests))
		for _, line := range tests {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(hooks) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[fuchsia]Failed hooks (%d):[white]\n", len(hooks))
		for _, line := range hooks {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString("\n[gray]Enter folds the group, r marks every failure in it resolved[white]")
	return b.String()
}
