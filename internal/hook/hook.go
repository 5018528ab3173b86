// Package hook defines the engine lifecycle notifications.
//
// Each notification is a separate interface so a hook only implements the
// events it cares about. Hook errors and panics are logged and never stop the engine.
package hook

import (
	"context"

	"github.com/slok/conveyor/internal/model"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a human readable name for the hook, used in logs.
	Name() string
}

// PollingStarted is called after an engine starts polling.
type PollingStarted interface {
	OnPollingStarted(ctx context.Context, handlerName string) error
}

// PollingStopped is called after an engine stops polling.
type PollingStopped interface {
	OnPollingStopped(ctx context.Context, handlerName string) error
}

// TaskEnded is called exactly once per executed task, after its resolution.
type TaskEnded interface {
	OnTaskEnded(ctx context.Context, task model.TaskRow, res model.Resolution) error
}

// PollCaused is called when a claimed task can't be executed because its stored
// data is not valid. The task has already been denied and locked (best effort).
type PollCaused interface {
	OnPollCause(ctx context.Context, taskID string, cause error) error
}

// TaskResolutionFailed is called when the engine could not store the resolution
// of a task.
type TaskResolutionFailed interface {
	OnTaskResolutionFailed(ctx context.Context, task model.TaskRow, err error) error
}
