package lib

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/slok/conveyor/internal/conveyor"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/model"
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when an input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNotRunning is returned when an operation requires a running engine.
	ErrNotRunning = conveyor.ErrNotRunning
	// ErrAlreadyRunning is returned when the engine is started twice.
	ErrAlreadyRunning = conveyor.ErrAlreadyRunning
)

// StoreDriver is the task store type.
type StoreDriver string

const (
	// StoreSQLite stores the tasks in a SQLite database file.
	StoreSQLite StoreDriver = "sqlite"
	// StorePostgres stores the tasks in a PostgreSQL database.
	StorePostgres StoreDriver = "postgres"
	// StoreMemory stores the tasks in memory, used for testing.
	StoreMemory StoreDriver = "memory"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusNew is a task waiting to be claimed.
	TaskStatusNew TaskStatus = "new"
	// TaskStatusWork is a task being executed.
	TaskStatusWork TaskStatus = "work"
	// TaskStatusDone is a completed task.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusDeny is a denied task.
	TaskStatusDeny TaskStatus = "deny"
)

// ResolutionErrorPolicy selects how the engine reports a task resolution that
// could not be stored.
type ResolutionErrorPolicy = conveyor.ResolutionErrorPolicy

const (
	// ResolutionErrorPolicyLog only logs the failure.
	ResolutionErrorPolicyLog = conveyor.ResolutionErrorPolicyLog
	// ResolutionErrorPolicyNotify also notifies the [TaskResolutionFailedHook] hooks.
	ResolutionErrorPolicyNotify = conveyor.ResolutionErrorPolicyNotify
)

// Task is a claimed task being executed by a [Handler].
type Task = conveyor.Task

// Handler executes a task of a registered type.
type Handler = conveyor.HandlerFunc

// TaskSnapshot is the stored state of a task received by the hooks.
type TaskSnapshot = model.TaskRow

// Resolution is how a task execution ended.
type Resolution = model.Resolution

// Hook types, a hook implements [Hook] and any number of the event interfaces.
type (
	Hook                     = hook.Hook
	PollingStartedHook       = hook.PollingStarted
	PollingStoppedHook       = hook.PollingStopped
	TaskEndedHook            = hook.TaskEnded
	PollCauseHook            = hook.PollCaused
	TaskResolutionFailedHook = hook.TaskResolutionFailed
	// HookFuncs is a hook made of closures, nil closures are ignored.
	HookFuncs = hook.Funcs
)

// TaskInfo is a stored task.
type TaskInfo struct {
	Sequence int64
	ID       string
	Type     string
	// Status is empty when the stored status is not valid.
	Status      TaskStatus
	Locked      bool
	HandlerName string
	Owner       string
	Description string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// EnqueueOpts are the options to store a new task.
type EnqueueOpts struct {
	// Type selects the handler that executes the task. Required.
	Type string
	// Payload is the task data. Must be JSON when set.
	Payload json.RawMessage
	// Owner identifies who created the task. Required.
	Owner       string
	Description string
	// HandlerName addresses the task to an engine, empty means any engine.
	HandlerName string
}

// ListTasksOpts filters the task list.
type ListTasksOpts struct {
	// Status filters by status (optional).
	Status *TaskStatus
	// HandlerName filters by handler name (optional).
	HandlerName string
	// Limit is the maximum number of tasks, 0 is unlimited.
	Limit int
}

func fromInternalTask(r model.TaskRow) TaskInfo {
	t := TaskInfo{
		Sequence:    r.Sequence,
		ID:          r.ID,
		Type:        r.Type,
		Locked:      r.Locked,
		HandlerName: r.HandlerName,
		Owner:       r.Owner,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}

	if st, err := model.ParseTaskStatus(r.Status); err == nil {
		t.Status = TaskStatus(st)
	}
	if r.Payload != nil {
		t.Payload = json.RawMessage(r.Payload)
	}

	return t
}

func fromInternalTaskList(rs []model.TaskRow) []TaskInfo {
	ts := make([]TaskInfo, 0, len(rs))
	for _, r := range rs {
		ts = append(ts, fromInternalTask(r))
	}
	return ts
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
