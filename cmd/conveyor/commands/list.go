package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/conveyor/internal/app/list"
	"github.com/slok/conveyor/internal/model"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter  string
	handlerFilter string
	limit         int
	format        string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List tasks.")
	c.Cmd.Flag("status", "Filter by status (new, work, done, deny).").StringVar(&c.statusFilter)
	c.Cmd.Flag("handler", "Filter by handler name.").StringVar(&c.handlerFilter)
	c.Cmd.Flag("limit", "Maximum number of tasks, 0 is unlimited.").Default("0").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.newRepository(ctx, c.rootCmd.storeConfig(model.StoreConfig{}))
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.Run(ctx, list.Request{
		Status:      c.statusFilter,
		HandlerName: c.handlerFilter,
		Limit:       c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
