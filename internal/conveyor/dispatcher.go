package conveyor

import (
	"cmp"
	"context"
	"slices"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/worker"
)

// dispatch submits the tasks to the pool in sequence order. Tasks without a
// registered handler are denied (not locked), even when the engine is disabled.
// Once the engine is disabled the remaining handled tasks are dropped.
func (e *Engine) dispatch(ctx context.Context, pool *worker.Pool, tasks []*Task) {
	slices.SortStableFunc(tasks, func(a, b *Task) int { return cmp.Compare(a.Sequence(), b.Sequence()) })

	for _, t := range tasks {
		logger := e.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": t.ID(), "task-type": t.Type()})

		handler, ok := e.handlers.get(t.Type())
		if !ok {
			e.audit.UnhandledType(t.ID(), t.Type())
			if err := t.reject(ctx); err != nil {
				logger.Warningf("Could not deny unhandled task: %s", err)
			}
			continue
		}

		if !e.isEnabled() {
			logger.Debugf("Engine disabled, claimed task dropped")
			continue
		}

		e.audit.ExecuteTask(t.ID(), t.Type())
		if err := t.MarkWorking(ctx); err != nil {
			logger.Errorf("Could not mark task as working: %s", err)
			continue
		}

		err := pool.Submit(func() { e.execute(ctx, t, handler) })
		if err != nil {
			// The task is already working, it would never be claimed again.
			logger.Errorf("Could not submit task: %s", err)
			e.abandon(ctx, t, err)
			continue
		}
		logger.Debugf("Task submitted")
	}
}
