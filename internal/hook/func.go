package hook

import (
	"context"

	"github.com/slok/conveyor/internal/model"
)

// Funcs is a Hook made of closures, nil closures are ignored.
type Funcs struct {
	HookName                 string
	PollingStartedFunc       func(ctx context.Context, handlerName string) error
	PollingStoppedFunc       func(ctx context.Context, handlerName string) error
	TaskEndedFunc            func(ctx context.Context, task model.TaskRow, res model.Resolution) error
	PollCauseFunc            func(ctx context.Context, taskID string, cause error) error
	TaskResolutionFailedFunc func(ctx context.Context, task model.TaskRow, err error) error
}

var (
	_ PollingStarted       = Funcs{}
	_ PollingStopped       = Funcs{}
	_ TaskEnded            = Funcs{}
	_ PollCaused           = Funcs{}
	_ TaskResolutionFailed = Funcs{}
)

func (f Funcs) Name() string {
	if f.HookName == "" {
		return "funcs"
	}
	return f.HookName
}

func (f Funcs) OnPollingStarted(ctx context.Context, handlerName string) error {
	if f.PollingStartedFunc == nil {
		return nil
	}
	return f.PollingStartedFunc(ctx, handlerName)
}

func (f Funcs) OnPollingStopped(ctx context.Context, handlerName string) error {
	if f.PollingStoppedFunc == nil {
		return nil
	}
	return f.PollingStoppedFunc(ctx, handlerName)
}

func (f Funcs) OnTaskEnded(ctx context.Context, task model.TaskRow, res model.Resolution) error {
	if f.TaskEndedFunc == nil {
		return nil
	}
	return f.TaskEndedFunc(ctx, task, res)
}

func (f Funcs) OnPollCause(ctx context.Context, taskID string, cause error) error {
	if f.PollCauseFunc == nil {
		return nil
	}
	return f.PollCauseFunc(ctx, taskID, cause)
}

func (f Funcs) OnTaskResolutionFailed(ctx context.Context, task model.TaskRow, err error) error {
	if f.TaskResolutionFailedFunc == nil {
		return nil
	}
	return f.TaskResolutionFailedFunc(ctx, task, err)
}
