package conveyor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

var (
	// ErrMalformedPayload is the poll cause of a claimed task whose payload is not JSON.
	ErrMalformedPayload = model.ErrMalformedPayload
	// ErrInvalidStatus is the poll cause of a claimed task without a known status.
	ErrInvalidStatus = model.ErrInvalidStatus
)

// Task is a claimed task. Handlers resolve it with its lifecycle operations, every
// operation is written to the store before changing the task. It's safe for
// concurrent use.
type Task struct {
	row     model.TaskRow
	payload any
	repo    storage.TaskRepository
	audit   audit.Logger

	mu     sync.Mutex
	status model.TaskStatus
	locked bool
}

// newTask validates a stored row. A NULL payload is accepted as an absent payload.
// When both the payload and the status are wrong the payload error is returned.
func newTask(row model.TaskRow, repo storage.TaskRepository, al audit.Logger) (*Task, error) {
	var payload any
	var payloadErr error
	if row.Payload != nil {
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			payloadErr = fmt.Errorf("task %s: %w: %w", row.ID, ErrMalformedPayload, err)
		}
	}

	status, statusErr := model.ParseTaskStatus(row.Status)
	if statusErr != nil {
		statusErr = fmt.Errorf("task %s: %w: %w", row.ID, ErrInvalidStatus, statusErr)
	}

	if payloadErr != nil {
		return nil, payloadErr
	}
	if statusErr != nil {
		return nil, statusErr
	}

	return &Task{
		row:     row,
		payload: payload,
		repo:    repo,
		audit:   al,
		status:  status,
		locked:  row.Locked,
	}, nil
}

func (t *Task) Sequence() int64      { return t.row.Sequence }
func (t *Task) ID() string           { return t.row.ID }
func (t *Task) Type() string         { return t.row.Type }
func (t *Task) CreatedAt() time.Time { return t.row.CreatedAt }
func (t *Task) Owner() string        { return t.row.Owner }
func (t *Task) Description() string  { return t.row.Description }
func (t *Task) HandlerName() string  { return t.row.HandlerName }

// Payload returns the parsed JSON payload, nil when the task has none.
func (t *Task) Payload() any { return t.payload }

// RawPayload returns the payload as stored.
func (t *Task) RawPayload() json.RawMessage {
	return append(json.RawMessage(nil), t.row.Payload...)
}

// DecodePayload unmarshals the payload into v.
func (t *Task) DecodePayload(v any) error {
	if t.row.Payload == nil {
		return fmt.Errorf("task %s has no payload: %w", t.row.ID, model.ErrNotFound)
	}

	if err := json.Unmarshal(t.row.Payload, v); err != nil {
		return fmt.Errorf("could not decode task %s payload: %w", t.row.ID, err)
	}

	return nil
}

func (t *Task) Status() model.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

// MarkWorking moves the task from new to work.
func (t *Task) MarkWorking(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setStatus(ctx, model.TaskStatusWork)
}

// Complete sets the task as done and locks it.
func (t *Task) Complete(ctx context.Context) error {
	return t.resolve(ctx, model.TaskStatusDone)
}

// Deny sets the task as denied and locks it.
func (t *Task) Deny(ctx context.Context) error {
	return t.resolve(ctx, model.TaskStatusDeny)
}

// Unlock unlocks the task.
func (t *Task) Unlock(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setLock(ctx, false)
}

// Snapshot returns the current task data.
func (t *Task) Snapshot() model.TaskRow {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := t.row
	status := string(t.status)
	row.Status = &status
	row.Locked = t.locked
	row.Payload = append([]byte(nil), t.row.Payload...)

	return row
}

// reject denies the task without locking it.
func (t *Task) reject(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setStatus(ctx, model.TaskStatusDeny)
}

func (t *Task) resolve(ctx context.Context, status model.TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.setStatus(ctx, status); err != nil {
		return err
	}

	return t.setLock(ctx, true)
}

// setStatus requires the task mutex.
func (t *Task) setStatus(ctx context.Context, status model.TaskStatus) error {
	if !t.status.CanTransitionTo(status) {
		return fmt.Errorf("task %s from %s to %s: %w", t.row.ID, t.status, status, model.ErrInvalidTransition)
	}

	if err := t.repo.UpdateTaskStatus(ctx, t.row.ID, status); err != nil {
		return fmt.Errorf("could not set task %s status to %s: %w", t.row.ID, status, err)
	}
	t.status = status
	t.audit.MarkTask(t.row.ID, status)

	return nil
}

// setLock requires the task mutex.
func (t *Task) setLock(ctx context.Context, locked bool) error {
	if err := t.repo.SetTaskLock(ctx, t.row.ID, locked); err != nil {
		return fmt.Errorf("could not set task %s lock to %t: %w", t.row.ID, locked, err)
	}
	t.locked = locked

	return nil
}

// state returns status and lock atomically.
func (t *Task) state() (model.TaskStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.locked
}
