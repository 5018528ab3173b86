package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusNew  TaskStatus = "new"
	TaskStatusWork TaskStatus = "work"
	TaskStatusDone TaskStatus = "done"
	TaskStatusDeny TaskStatus = "deny"
)

// AnyHandler is the handler name that every engine accepts.
const AnyHandler = "*"

// ParseTaskStatus parses a raw status as stored. Nil and unknown values are not valid.
func ParseTaskStatus(raw *string) (TaskStatus, error) {
	if raw == nil {
		return "", fmt.Errorf("status is null: %w", ErrNotValid)
	}

	s := TaskStatus(strings.ToLower(strings.TrimSpace(*raw)))
	switch s {
	case TaskStatusNew, TaskStatusWork, TaskStatusDone, TaskStatusDeny:
		return s, nil
	}

	return "", fmt.Errorf("status %q: %w", *raw, ErrNotValid)
}

// IsTerminal returns true for the states a task never leaves.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusDeny
}

// CanTransitionTo reports if moving from s to next respects the task state machine:
// new -> work -> {done, deny}, with new -> deny allowed for tasks that never run.
// Writing the current state again is allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s == next {
		return true
	}

	switch s {
	case TaskStatusNew:
		return next == TaskStatusWork || next == TaskStatusDeny
	case TaskStatusWork:
		return next == TaskStatusDone || next == TaskStatusDeny
	}

	return false
}

// TaskRow is a task as stored, before any engine validation.
type TaskRow struct {
	Sequence int64
	ID       string
	Type     string
	// Payload is nil when the stored payload is NULL.
	Payload []byte
	// Status is nil when the stored status is NULL.
	Status      *string
	CreatedAt   time.Time
	Owner       string
	Description string
	HandlerName string
	Locked      bool
}

// NewTask is the data required to enqueue a task.
type NewTask struct {
	Type        string
	Payload     []byte
	Owner       string
	Description string
	// HandlerName selects the engine that will process the task, empty means any.
	HandlerName string
}

// Validate checks the new task is storable.
func (t NewTask) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("type is required: %w", ErrNotValid)
	}
	if t.Owner == "" {
		return fmt.Errorf("owner is required: %w", ErrNotValid)
	}
	return nil
}

// ListTasksOpts filters task listings.
type ListTasksOpts struct {
	Status      *TaskStatus
	HandlerName string
	Limit       int
}
