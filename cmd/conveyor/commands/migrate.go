package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/conveyor/internal/model"
)

type MigrateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewMigrateCommand returns the migrate command.
func NewMigrateCommand(rootCmd *RootCommand, app *kingpin.Application) *MigrateCommand {
	c := &MigrateCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("migrate", "Apply the task store schema migrations.")
	return c
}

func (c MigrateCommand) Name() string { return c.Cmd.FullCommand() }

func (c MigrateCommand) Run(ctx context.Context) error {
	storeCfg := c.rootCmd.storeConfig(model.StoreConfig{})

	// Stores apply the migrations when created.
	repo, err := c.rootCmd.newRepository(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	return c.rootCmd.newPrinter(formatTable).PrintMessage(fmt.Sprintf("%s store migrated", storeCfg.Driver))
}
