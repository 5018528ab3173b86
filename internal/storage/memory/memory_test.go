package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage/memory"
)

func strPtr(s string) *string { return &s }

func newRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
	require.NoError(t, err)
	return repo
}

func TestRepositoryCreateTask(t *testing.T) {
	tests := map[string]struct {
		task       model.NewTask
		expHandler string
		expErr     bool
	}{
		"Creating a task should default the handler to any.": {
			task:       model.NewTask{Type: "email", Owner: "billing", Payload: []byte(`{"to":"a@example.com"}`)},
			expHandler: model.AnyHandler,
		},

		"Creating a task with a handler should keep it.": {
			task:       model.NewTask{Type: "email", Owner: "billing", HandlerName: "mailer"},
			expHandler: "mailer",
		},

		"Creating an invalid task should fail.": {
			task:   model.NewTask{Owner: "billing"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := newRepo(t)
			row, err := repo.CreateTask(context.Background(), test.task)

			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			got, err := repo.GetTask(context.Background(), row.ID)
			require.NoError(err)
			assert.Equal(int64(1), got.Sequence)
			assert.Equal(test.expHandler, got.HandlerName)
			assert.Equal(string(model.TaskStatusNew), *got.Status)
			assert.False(got.Locked)
			assert.Equal(test.task.Payload, got.Payload)
		})
	}
}

func TestRepositoryClaimTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newRepo(t)
	rows := []model.TaskRow{
		{ID: "t3", Sequence: 3, Type: "a", Status: strPtr("new"), HandlerName: "*"},
		{ID: "t1", Sequence: 1, Type: "a", Status: strPtr("new"), HandlerName: "me"},
		{ID: "t2", Sequence: 2, Type: "a", Status: strPtr("new"), HandlerName: "other"},
		{ID: "t4", Sequence: 4, Type: "a", Status: strPtr("work"), HandlerName: "me"},
		{ID: "t5", Sequence: 5, Type: "a", Status: strPtr("new"), HandlerName: "me", Locked: true},
		{ID: "t6", Sequence: 6, Type: "a", Status: nil, HandlerName: "me"},
	}
	for _, row := range rows {
		_, err := repo.InsertTaskRow(row)
		require.NoError(err)
	}

	got, err := repo.ClaimTasks(context.Background(), "me")
	require.NoError(err)

	gotIDs := []string{}
	for _, r := range got {
		gotIDs = append(gotIDs, r.ID)
	}
	assert.Equal([]string{"t1", "t3"}, gotIDs)
}

func TestRepositoryLockRule(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, repo *memory.Repository, id string) error
		expErr  error
	}{
		"Updating the status of an unlocked task should work.": {
			actions: func(ctx context.Context, repo *memory.Repository, id string) error {
				return repo.UpdateTaskStatus(ctx, id, model.TaskStatusWork)
			},
		},

		"Updating the status of a locked task should fail.": {
			actions: func(ctx context.Context, repo *memory.Repository, id string) error {
				if err := repo.SetTaskLock(ctx, id, true); err != nil {
					return err
				}
				return repo.UpdateTaskStatus(ctx, id, model.TaskStatusDone)
			},
			expErr: model.ErrLocked,
		},

		"Locking a locked task should fail.": {
			actions: func(ctx context.Context, repo *memory.Repository, id string) error {
				if err := repo.SetTaskLock(ctx, id, true); err != nil {
					return err
				}
				return repo.SetTaskLock(ctx, id, true)
			},
			expErr: model.ErrLocked,
		},

		"Unlocking a locked task should allow updates again.": {
			actions: func(ctx context.Context, repo *memory.Repository, id string) error {
				if err := repo.SetTaskLock(ctx, id, true); err != nil {
					return err
				}
				if err := repo.SetTaskLock(ctx, id, false); err != nil {
					return err
				}
				return repo.UpdateTaskStatus(ctx, id, model.TaskStatusDeny)
			},
		},

		"Updating a missing task should fail.": {
			actions: func(ctx context.Context, repo *memory.Repository, id string) error {
				return repo.UpdateTaskStatus(ctx, "missing", model.TaskStatusWork)
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			ctx := context.Background()
			repo := newRepo(t)
			row, err := repo.CreateTask(ctx, model.NewTask{Type: "email", Owner: "billing"})
			require.NoError(err)

			err = test.actions(ctx, repo, row.ID)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepositoryListTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx := context.Background()
	repo := newRepo(t)
	for _, typ := range []string{"a", "b", "c"} {
		_, err := repo.CreateTask(ctx, model.NewTask{Type: typ, Owner: "me"})
		require.NoError(err)
	}
	rows, err := repo.ListTasks(ctx, model.ListTasksOpts{})
	require.NoError(err)
	require.NoError(repo.UpdateTaskStatus(ctx, rows[1].ID, model.TaskStatusWork))

	work := model.TaskStatusWork
	got, err := repo.ListTasks(ctx, model.ListTasksOpts{Status: &work})
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("b", got[0].Type)

	got, err = repo.ListTasks(ctx, model.ListTasksOpts{Limit: 2})
	require.NoError(err)
	require.Len(got, 2)
	assert.Equal("a", got[0].Type)
}
