package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gest/internal/cli"
	"gest/internal/config"
	"gest/internal/domain"
	"gest/internal/storage"
	"gest/internal/ui"
)

// ErrTestsFailed is returned by the run command when the report is not OK
var ErrTestsFailed = errors.New("tests failed")

// Suite is the registry the commands run and list
type Suite interface {
	Run(ctx context.Context, opts domain.RunOptions) *domain.Report
	Tree() domain.Node
}

// Commands holds all CLI commands
type Commands struct {
	Run     *RunCommand
	List    *ListCommand
	Migrate *MigrateCommand
	Faills  *FaillsCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config, suite Suite) *Commands {
	formatter := ui.NewFormatter()

	return &Commands{
		Run:     NewRunCommand(cfg, suite, formatter),
		List:    NewListCommand(cfg, suite, formatter),
		Migrate: NewMigrateCommand(cfg),
		Faills:  NewFaillsCommand(cfg),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	// Environment and flags are applied once, before any subcommand runs
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Print every test and enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.Store, "store", "", "Results store: json or mysql (default from GEST_STORE, else json)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cfg.LoadEnv(); err != nil {
			return err
		}
		flags.TimeoutSet = cmd.Flags().Changed("timeout")
		if flags.Verbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
		return cfg.ApplyFlags(flags.ToConfigFlags())
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the registered tests",
		Long:  "Execute every registered test in order and store the results of the run",
		RunE:  c.Run.Execute,
	}
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by full name pattern (supports wildcards, e.g., '*counter*' or 'describe block*')")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop on first test failure")
	runCmd.Flags().BoolVar(&flags.OnlyFailed, "failed", false, "Run only tests that failed in the last run")
	runCmd.Flags().DurationVar(&flags.Timeout, "timeout", config.DefaultTimeout, "Bound for every test body and hook, 0 disables it")
	runCmd.Flags().BoolVar(&flags.OpenFaills, "open-faills", false, "Open the faills viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tests",
		Long:  "Print the registered groups and tests without executing them",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by full name pattern (supports wildcards)")
	rootCmd.AddCommand(listCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the results database",
		Long:  "Create the MySQL database and tables used by --store mysql",
		RunE:  c.Migrate.Execute,
	}
	rootCmd.AddCommand(migrateCmd)

	// Faills command
	faillsCmd := &cobra.Command{
		Use:   "faills",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last test run in an interactive viewer",
		RunE:  c.Faills.Execute,
	}
	rootCmd.AddCommand(faillsCmd)
}

// NewRootCommand builds the command tree for suite
func NewRootCommand(suite Suite, name, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           name,
		Short:         "Run the registered test suite",
		Long:          `Run, list and inspect the tests registered in this binary. Without a subcommand every test is run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	cmds := NewCommands(cfg, suite)
	cmds.Register(rootCmd, &flags, cfg)
	rootCmd.RunE = cmds.Run.Execute
	return rootCmd
}

// Execute runs the command tree with args and returns the process exit code
func Execute(suite Suite, name, version string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCommand(suite, name, version)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// openStorage returns the configured store and a function releasing it
func openStorage(cfg *config.Config) (storage.Storage, func(), error) {
	st, err := storage.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := st.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.WithError(err).Debug("Failed to close results store")
			}
		}
	}
	return st, release, nil
}
