package hook

import (
	"context"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

type logger struct {
	logger log.Logger
}

// NewLogger returns a hook that logs every engine notification. Poll causes
// and resolution failures are logged as errors.
func NewLogger(l log.Logger) Hook {
	if l == nil {
		l = log.Noop
	}
	return logger{logger: l.WithValues(log.Kv{"svc": "hook.Logger"})}
}

func (logger) Name() string { return "logger" }

func (l logger) OnPollingStarted(ctx context.Context, handlerName string) error {
	l.logger.WithCtxValues(ctx).Infof("Polling started for handler %q", handlerName)
	return nil
}

func (l logger) OnPollingStopped(ctx context.Context, handlerName string) error {
	l.logger.WithCtxValues(ctx).Infof("Polling stopped for handler %q", handlerName)
	return nil
}

func (l logger) OnTaskEnded(ctx context.Context, task model.TaskRow, res model.Resolution) error {
	logger := l.logger.WithCtxValues(ctx).WithValues(log.Kv{
		"task-id":   task.ID,
		"task-type": task.Type,
		"outcome":   res.Outcome,
		"status":    res.Status,
		"locked":    res.Locked,
	})
	if res.HandlerErr != nil {
		logger.Warningf("Task ended with handler error: %s", res.HandlerErr)
		return nil
	}
	logger.Debugf("Task ended")
	return nil
}

func (l logger) OnPollCause(ctx context.Context, taskID string, cause error) error {
	l.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": taskID}).Errorf("Poll Cause: %s", cause)
	return nil
}

func (l logger) OnTaskResolutionFailed(ctx context.Context, task model.TaskRow, err error) error {
	l.logger.WithCtxValues(ctx).WithValues(log.Kv{"task-id": task.ID, "task-type": task.Type}).Errorf("Task resolution could not be stored: %s", err)
	return nil
}
