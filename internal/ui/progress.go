package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"gest/internal/domain"
)

var (
	_ domain.Observer = (*ProgressBar)(nil)
	_ domain.Observer = (*LineReporter)(nil)
)

// ProgressBar reports run progress as a bar. It implements domain.Observer.
type ProgressBar struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	passed  int
	failed  int
	pending int
}

// NewProgressBar creates a progress bar writing to stderr
func NewProgressBar() *ProgressBar {
	return &ProgressBar{out: os.Stderr}
}

// RunStarted creates the bar once the number of tests is known
func (p *ProgressBar) RunStarted(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// TestFinished updates the bar with success and failure counts
func (p *ProgressBar) TestFinished(result domain.TestResult) {
	switch result.Status {
	case domain.StatusPassed:
		p.passed++
	case domain.StatusFailed:
		p.failed++
	case domain.StatusPending:
		p.pending++
	}
	if p.bar == nil {
		return
	}
	p.bar.Set(p.passed + p.failed + p.pending)
	p.bar.Describe(p.describe())
}

// RunFinished completes the bar
func (p *ProgressBar) RunFinished(*domain.Report) {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func (p *ProgressBar) describe() string {
	return color.CyanString("Running tests: ") +
		color.GreenString("[success: %d", p.passed) +
		" | " +
		color.RedString("failed: %d", p.failed) +
		" | " +
		color.YellowString("pending: %d]", p.pending)
}

// LineReporter prints one line per finished test. It implements domain.Observer.
type LineReporter struct {
	out io.Writer
}

// NewLineReporter creates a LineReporter writing to out
func NewLineReporter(out io.Writer) *LineReporter {
	return &LineReporter{out: out}
}

// RunStarted prints the number of tests about to run
func (r *LineReporter) RunStarted(total int) {
	cyan.Fprintf(r.out, "Running %d test(s)\n\n", total)
}

// TestFinished prints the test's status and duration
func (r *LineReporter) TestFinished(result domain.TestResult) {
	switch result.Status {
	case domain.StatusPassed:
		green.Fprint(r.out, "  ✓ ")
		fmt.Fprint(r.out, result.FullName())
		gray.Fprintf(r.out, " (%s)\n", result.Duration.Round(time.Millisecond))
	case domain.StatusFailed:
		red.Fprintf(r.out, "  ✗ %s", result.FullName())
		gray.Fprintf(r.out, " [%s]\n", result.Kind)
	default:
		yellow.Fprintf(r.out, "  ○ %s", result.FullName())
		if result.Reason != "" {
			gray.Fprintf(r.out, " (%s)", result.Reason)
		}
		fmt.Fprintln(r.out)
	}
}

// RunFinished prints a blank line after the last test
func (r *LineReporter) RunFinished(*domain.Report) {
	fmt.Fprintln(r.out)
}
