package conveyor

import (
	"context"
	"fmt"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

// poll claims the tasks of the engine. Claimed rows that are not valid are denied,
// locked and reported as poll causes, the rest are returned.
func (e *Engine) poll(ctx context.Context) ([]*Task, error) {
	rows, err := e.repo.ClaimTasks(ctx, e.handlerName)
	if err != nil {
		return nil, fmt.Errorf("could not claim tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(rows))
	for _, row := range rows {
		t, err := newTask(row, e.repo, e.audit)
		if err != nil {
			e.rejectRow(ctx, row.ID, err)
			continue
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// rejectRow denies and locks a poisoned row so it's not claimed again. Store
// failures are only logged, the poll cause is always notified.
func (e *Engine) rejectRow(ctx context.Context, id string, cause error) {
	logger := e.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": id})

	if err := e.repo.UpdateTaskStatus(ctx, id, model.TaskStatusDeny); err != nil {
		logger.Warningf("Could not deny rejected task: %s", err)
	} else {
		e.audit.MarkTask(id, model.TaskStatusDeny)
	}

	if err := e.repo.SetTaskLock(ctx, id, true); err != nil {
		logger.Warningf("Could not lock rejected task: %s", err)
	}

	e.hooks.EmitPollCause(ctx, id, cause)
}
