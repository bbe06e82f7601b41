package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gest/internal/config"
	"gest/internal/domain"
	"gest/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	suite     Suite
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, suite Suite, formatter *ui.Formatter) *RunCommand {
	return &RunCommand{
		config:    cfg,
		suite:     suite,
		formatter: formatter,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	st, release, err := openStorage(rc.config)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer release()

	opts, err := rc.options(func() (*domain.TestResultsOutput, error) { return st.Load() })
	if err != nil {
		return err
	}
	if rc.config.Flags.OnlyFailed && len(opts.Names) == 0 && len(opts.Groups) == 0 {
		color.Yellow("No failed tests in the last run")
		return nil
	}

	report := rc.suite.Run(cmd.Context(), opts)

	// Save results
	if err := st.Save(report); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}

	output := report.Output()
	rc.formatter.PrintFailures(output.Details)
	rc.formatter.PrintMetaStats(&output)

	if report.OK() {
		return nil
	}
	if rc.config.Flags.OpenFaills {
		if err := ui.NewErrorViewer(st).View(&output); err != nil {
			log.WithError(err).Warn("Failed to open faills viewer")
		}
	}
	return ErrTestsFailed
}

// options translates configuration into run options. load is only called
// for --failed.
func (rc *RunCommand) options(load func() (*domain.TestResultsOutput, error)) (domain.RunOptions, error) {
	flags := rc.config.Flags
	opts := domain.RunOptions{
		Filter:   flags.NameFilter,
		FailFast: flags.FailFast,
	}

	if rc.config.TimeoutSet {
		if rc.config.Timeout == 0 {
			opts.NoTimeout = true
		} else {
			opts.Timeout = rc.config.Timeout
		}
	}

	if flags.Verbose {
		opts.Observer = ui.NewLineReporter(color.Output)
	} else {
		opts.Observer = ui.NewProgressBar()
	}

	if flags.OnlyFailed {
		last, err := load()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return opts, fmt.Errorf("no previous run found at %s", rc.config.GetOutputPath())
			}
			return opts, fmt.Errorf("failed to load last run: %w", err)
		}
		opts.Names = last.FailedNames()
		opts.Groups = last.FailedGroups()
	}
	return opts, nil
}
