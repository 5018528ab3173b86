package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/conveyor/internal/app/enqueue"
	"github.com/slok/conveyor/internal/model"
)

type EnqueueCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskType    string
	payload     string
	owner       string
	description string
	handlerName string
	format      string
}

// NewEnqueueCommand returns the enqueue command.
func NewEnqueueCommand(rootCmd *RootCommand, app *kingpin.Application) *EnqueueCommand {
	c := &EnqueueCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("enqueue", "Store a new task.")
	c.Cmd.Flag("type", "Task type.").Short('t').Required().StringVar(&c.taskType)
	c.Cmd.Flag("payload", "Task JSON payload.").Short('p').StringVar(&c.payload)
	c.Cmd.Flag("owner", "Task owner.").Short('o').Required().StringVar(&c.owner)
	c.Cmd.Flag("description", "Task description.").StringVar(&c.description)
	c.Cmd.Flag("handler", "Handler name of the engine that should execute the task.").Default(model.AnyHandler).StringVar(&c.handlerName)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c EnqueueCommand) Name() string { return c.Cmd.FullCommand() }

func (c EnqueueCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.newRepository(ctx, c.rootCmd.storeConfig(model.StoreConfig{}))
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := enqueue.NewService(enqueue.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Run(ctx, enqueue.Request{
		Type:        c.taskType,
		Payload:     c.payload,
		Owner:       c.owner,
		Description: c.description,
		HandlerName: c.handlerName,
	})
	if err != nil {
		return fmt.Errorf("could not enqueue task: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintTask(*task); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	return nil
}
