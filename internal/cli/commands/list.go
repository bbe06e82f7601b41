package commands

import (
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gest/internal/config"
	"gest/internal/discovery"
	"gest/internal/domain"
	"gest/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	suite     Suite
	formatter *ui.Formatter
}

// NewListCommand creates a new ListCommand
func NewListCommand(cfg *config.Config, suite Suite, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{
		config:    cfg,
		suite:     suite,
		formatter: formatter,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	root := filterTree(lc.suite.Tree(), nil, lc.config.Flags.NameFilter)
	if len(root.Children) == 0 {
		color.Yellow("No tests found")
		return nil
	}

	// Mark tests that failed in the last run, if there was one
	var failed map[string]struct{}
	if st, release, err := openStorage(lc.config); err == nil {
		if last, err := st.Load(); err == nil {
			failed = last.FailedNames()
		} else {
			log.WithError(err).Debug("No previous run to mark failures from")
		}
		release()
	} else {
		log.WithError(err).Debug("Results store unavailable")
	}

	lc.formatter.PrintTestList(root, failed)
	return nil
}

// filterTree drops tests whose full name does not match pattern and groups
// left without tests
func filterTree(node domain.Node, path []string, pattern string) domain.Node {
	if pattern == "" {
		return node
	}
	out := domain.Node{Name: node.Name, Test: node.Test, Pending: node.Pending}
	for _, child := range node.Children {
		if child.Test {
			if discovery.MatchName(domain.JoinName(path, child.Name), pattern) {
				out.Children = append(out.Children, child)
			}
			continue
		}
		sub := filterTree(child, append(path[:len(path):len(path)], child.Name), pattern)
		if len(sub.Children) > 0 {
			out.Children = append(out.Children, sub)
		}
	}
	return out
}
