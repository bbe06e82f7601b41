package commands

import (
	"github.com/spf13/cobra"

	"gest/internal/config"
	"gest/internal/ui"
)

// FaillsCommand handles the faills command
type FaillsCommand struct {
	config *config.Config
}

// NewFaillsCommand creates a new FaillsCommand
func NewFaillsCommand(cfg *config.Config) *FaillsCommand {
	return &FaillsCommand{config: cfg}
}

// Execute runs the command
func (fc *FaillsCommand) Execute(cmd *cobra.Command, args []string) error {
	st, release, err := openStorage(fc.config)
	if err != nil {
		return err
	}
	defer release()

	results, err := st.Load()
	if err != nil {
		return err
	}

	return ui.NewErrorViewer(st).View(results)
}
