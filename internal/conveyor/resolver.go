package conveyor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

// execute is the unit of work of a task: runs the handler, resolves the task
// and notifies the task end. The task end is always notified once.
func (e *Engine) execute(ctx context.Context, t *Task, handler HandlerFunc) {
	logger := e.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": t.ID(), "task-type": t.Type()})

	start := time.Now()
	handlerErr := runHandler(ctx, t, handler)
	duration := time.Since(start)
	if handlerErr != nil {
		logger.Warningf("Task handler failed: %s", handlerErr)
	}

	res := e.resolve(ctx, t, handlerErr)
	res.Duration = duration

	if res.Err != nil {
		logger.Errorf("Could not resolve task: %s", res.Err)
		if e.resolutionErrorPolicy == ResolutionErrorPolicyNotify {
			e.hooks.EmitTaskResolutionFailed(ctx, t.Snapshot(), res.Err)
		}
	}

	e.hooks.EmitTaskEnded(ctx, t.Snapshot(), res)
}

func runHandler(ctx context.Context, t *Task, handler HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\n%s", r, debug.Stack())
		}
	}()

	return handler(ctx, t)
}

// resolve applies the resolution policy to a task whose handler has returned. Tasks
// already resolved by the handler (not working anymore or locked) are kept.
func (e *Engine) resolve(ctx context.Context, t *Task, handlerErr error) model.Resolution {
	status, locked := t.state()
	res := model.Resolution{
		Outcome:    model.ResolutionKept,
		Status:     status,
		Locked:     locked,
		HandlerErr: handlerErr,
	}

	if status != model.TaskStatusWork || locked {
		return res
	}

	switch {
	case handlerErr != nil:
		res.Outcome = model.ResolutionDenied
		res.Err = t.Deny(ctx)
	case e.autoResolve:
		res.Outcome = model.ResolutionCompleted
		res.Err = t.Complete(ctx)
	default:
		res.Outcome = model.ResolutionDenied
		res.Err = t.Deny(ctx)
	}

	res.Status, res.Locked = t.state()
	return res
}

// abandon denies a working task that could not be executed and notifies its end.
func (e *Engine) abandon(ctx context.Context, t *Task, cause error) {
	res := model.Resolution{
		Outcome:    model.ResolutionDenied,
		HandlerErr: fmt.Errorf("task not executed: %w", cause),
		Err:        t.Deny(ctx),
	}
	res.Status, res.Locked = t.state()

	if res.Err != nil {
		e.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": t.ID(), "task-type": t.Type()}).Errorf("Could not deny abandoned task: %s", res.Err)
		if e.resolutionErrorPolicy == ResolutionErrorPolicyNotify {
			e.hooks.EmitTaskResolutionFailed(ctx, t.Snapshot(), res.Err)
		}
	}

	e.hooks.EmitTaskEnded(ctx, t.Snapshot(), res)
}
