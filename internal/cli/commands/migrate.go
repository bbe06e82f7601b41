package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gest/internal/config"
	"gest/internal/storage"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	config *config.Config
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(cfg *config.Config) *MigrateCommand {
	return &MigrateCommand{config: cfg}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	if err := storage.Migrate(cmd.Context(), mc.config); err != nil {
		return err
	}
	color.Green("✓ Results database %s is ready", mc.config.Database.Name)
	return nil
}
