package conveyor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage/memory"
)

func strPtr(s string) *string { return &s }

func TestNewTask(t *testing.T) {
	tests := map[string]struct {
		row        model.TaskRow
		expPayload any
		expStatus  model.TaskStatus
		expErr     error
	}{
		"A valid row should be a task.": {
			row:        model.TaskRow{ID: "t1", Payload: []byte(`{"to":"a@example.com","n":1}`), Status: strPtr("new")},
			expPayload: map[string]any{"to": "a@example.com", "n": float64(1)},
			expStatus:  model.TaskStatusNew,
		},

		"Status should be parsed case insensitive.": {
			row:       model.TaskRow{ID: "t1", Status: strPtr(" WORK ")},
			expStatus: model.TaskStatusWork,
		},

		"A null payload should be an absent payload.": {
			row:       model.TaskRow{ID: "t1", Status: strPtr("new")},
			expStatus: model.TaskStatusNew,
		},

		"A JSON array payload should be accepted.": {
			row:        model.TaskRow{ID: "t1", Payload: []byte(`[1,2]`), Status: strPtr("new")},
			expPayload: []any{float64(1), float64(2)},
			expStatus:  model.TaskStatusNew,
		},

		"A payload that is not JSON should fail.": {
			row:    model.TaskRow{ID: "t1", Payload: []byte(`not-json`), Status: strPtr("new")},
			expErr: ErrMalformedPayload,
		},

		"A null status should fail.": {
			row:    model.TaskRow{ID: "t1", Payload: []byte(`{}`)},
			expErr: ErrInvalidStatus,
		},

		"An unknown status should fail.": {
			row:    model.TaskRow{ID: "t1", Status: strPtr("archived")},
			expErr: ErrInvalidStatus,
		},

		"With payload and status wrong the payload should be the reported error.": {
			row:    model.TaskRow{ID: "t1", Payload: []byte(`{`), Status: strPtr("archived")},
			expErr: ErrMalformedPayload,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			task, err := newTask(test.row, nil, audit.Noop)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}

			if assert.NoError(err) {
				assert.Equal(test.expPayload, task.Payload())
				assert.Equal(test.expStatus, task.Status())
			}
		})
	}
}

func TestTaskDecodePayload(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	task, err := newTask(model.TaskRow{ID: "t1", Payload: []byte(`{"to":"a@example.com"}`), Status: strPtr("new")}, nil, audit.Noop)
	require.NoError(err)

	var email struct {
		To string `json:"to"`
	}
	require.NoError(task.DecodePayload(&email))
	assert.Equal("a@example.com", email.To)
	assert.JSONEq(`{"to":"a@example.com"}`, string(task.RawPayload()))

	empty, err := newTask(model.TaskRow{ID: "t2", Status: strPtr("new")}, nil, audit.Noop)
	require.NoError(err)
	assert.ErrorIs(empty.DecodePayload(&email), model.ErrNotFound)
	assert.Nil(empty.RawPayload())
}

func TestTaskLifecycle(t *testing.T) {
	tests := map[string]struct {
		ops       func(ctx context.Context, t *Task) error
		expErr    error
		expStatus model.TaskStatus
		expLocked bool
	}{
		"Marking working should move the task to work.": {
			ops:       func(ctx context.Context, t *Task) error { return t.MarkWorking(ctx) },
			expStatus: model.TaskStatusWork,
		},

		"Completing should set done and lock.": {
			ops: func(ctx context.Context, t *Task) error {
				_ = t.MarkWorking(ctx)
				return t.Complete(ctx)
			},
			expStatus: model.TaskStatusDone,
			expLocked: true,
		},

		"Denying a new task should set deny and lock.": {
			ops:       func(ctx context.Context, t *Task) error { return t.Deny(ctx) },
			expStatus: model.TaskStatusDeny,
			expLocked: true,
		},

		"Completing a new task should fail.": {
			ops:       func(ctx context.Context, t *Task) error { return t.Complete(ctx) },
			expErr:    model.ErrInvalidTransition,
			expStatus: model.TaskStatusNew,
		},

		"Moving back a resolved task should fail without touching the store.": {
			ops: func(ctx context.Context, t *Task) error {
				_ = t.Deny(ctx)
				_ = t.Unlock(ctx)
				return t.MarkWorking(ctx)
			},
			expErr:    model.ErrInvalidTransition,
			expStatus: model.TaskStatusDeny,
		},

		"Changing a locked task should fail and keep the task as it was.": {
			ops: func(ctx context.Context, t *Task) error {
				_ = t.MarkWorking(ctx)
				_ = t.Deny(ctx)
				return t.Deny(ctx)
			},
			expErr:    model.ErrLocked,
			expStatus: model.TaskStatusDeny,
			expLocked: true,
		},

		"Unlocking should unlock the task.": {
			ops: func(ctx context.Context, t *Task) error {
				_ = t.MarkWorking(ctx)
				_ = t.Complete(ctx)
				return t.Unlock(ctx)
			},
			expStatus: model.TaskStatusDone,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			row, err := repo.InsertTaskRow(model.TaskRow{ID: "t1", Type: "email", Status: strPtr("new")})
			require.NoError(err)

			task, err := newTask(row, repo, audit.Noop)
			require.NoError(err)

			err = test.ops(context.Background(), task)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}

			// In memory and stored data should be the same.
			assert.Equal(test.expStatus, task.Status())
			assert.Equal(test.expLocked, task.Locked())
			stored, err := repo.GetTask(context.Background(), "t1")
			require.NoError(err)
			assert.Equal(string(test.expStatus), *stored.Status)
			assert.Equal(test.expLocked, stored.Locked)

			snap := task.Snapshot()
			assert.Equal(string(test.expStatus), *snap.Status)
			assert.Equal(test.expLocked, snap.Locked)
		})
	}
}
