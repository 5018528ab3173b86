package storage

import (
	"context"

	"github.com/slok/conveyor/internal/model"
)

// TaskRepository is the interface for task persistence.
//
// Implementations must enforce the lock rule themselves: once a task is locked
// no update succeeds except an unlock, and they must return model.ErrLocked when
// a mutation is refused because of it.
type TaskRepository interface {
	// ClaimTasks returns the new and unlocked tasks addressed to handlerName or to
	// any handler, ordered by sequence.
	ClaimTasks(ctx context.Context, handlerName string) ([]model.TaskRow, error)
	// UpdateTaskStatus sets the status of an unlocked task.
	UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error
	// SetTaskLock locks or unlocks a task. Locking an already locked task fails.
	SetTaskLock(ctx context.Context, id string, locked bool) error

	CreateTask(ctx context.Context, t model.NewTask) (*model.TaskRow, error)
	GetTask(ctx context.Context, id string) (*model.TaskRow, error)
	ListTasks(ctx context.Context, opts model.ListTasksOpts) ([]model.TaskRow, error)
}
