package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage/sqlite"
	"github.com/slok/conveyor/internal/storage/sqlite/migrations"
)

func getTestRepository(t *testing.T) (*sqlite.Repository, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "conveyor-test.db")
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{DBPath: dbPath, Logger: log.Noop})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// Raw access to seed rows the repository would never write.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repo, db
}

func TestMigrator(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(err)
	defer db.Close()

	m, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(err)

	version, _, err := m.Version(context.Background())
	require.NoError(err)
	assert.Equal(uint(0), version)

	require.NoError(m.Up(context.Background()))
	require.NoError(m.Up(context.Background()), "applying twice should be a no-op")

	version, dirty, err := m.Version(context.Background())
	require.NoError(err)
	assert.Equal(uint(1), version)
	assert.False(dirty)

	require.NoError(m.Down(context.Background()))
	_, err = db.Exec(`SELECT 1 FROM tasks`)
	assert.Error(err)
}

func TestRepositoryCreateTask(t *testing.T) {
	tests := map[string]struct {
		task       model.NewTask
		expHandler string
		expErr     bool
	}{
		"Creating a task should default the handler to any.": {
			task:       model.NewTask{Type: "email", Owner: "billing", Payload: []byte(`{"to":"a@example.com"}`), Description: "welcome"},
			expHandler: model.AnyHandler,
		},

		"Creating a task for a handler should keep the handler.": {
			task:       model.NewTask{Type: "email", Owner: "billing", HandlerName: "mailer"},
			expHandler: "mailer",
		},

		"Creating a task without type should fail.": {
			task:   model.NewTask{Owner: "billing"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, _ := getTestRepository(t)
			row, err := repo.CreateTask(context.Background(), test.task)

			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(int64(1), row.Sequence)
			assert.Len(row.ID, 26)
			assert.Equal(test.task.Type, row.Type)
			assert.Equal(test.task.Payload, row.Payload)
			assert.Equal(test.task.Description, row.Description)
			assert.Equal(test.expHandler, row.HandlerName)
			require.NotNil(row.Status)
			assert.Equal("new", *row.Status)
			assert.False(row.Locked)
			assert.False(row.CreatedAt.IsZero())
		})
	}
}

func TestRepositoryClaimTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo, db := getTestRepository(t)
	_, err := db.Exec(`
		INSERT INTO tasks (id, type, payload, status, created_at, owner, handler_name, locked) VALUES
		('t1', 'a', '{}',       'new',  1, 'o', 'me',    0),
		('t2', 'a', NULL,       'new',  1, 'o', '*',     0),
		('t3', 'a', '{}',       'new',  1, 'o', 'other', 0),
		('t4', 'a', '{}',       'work', 1, 'o', 'me',    0),
		('t5', 'a', '{}',       'new',  1, 'o', 'me',    1),
		('t6', 'a', 'not-json', 'new',  1, 'o', 'me',    0)
	`)
	require.NoError(err)

	rows, err := repo.ClaimTasks(context.Background(), "me")
	require.NoError(err)

	gotIDs := []string{}
	for _, r := range rows {
		gotIDs = append(gotIDs, r.ID)
	}
	assert.Equal([]string{"t1", "t2", "t6"}, gotIDs)
	assert.Nil(rows[1].Payload)
	assert.Equal([]byte("not-json"), rows[2].Payload)
}

func TestRepositoryLockRule(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, repo *sqlite.Repository, id string) error
		expErr  error
	}{
		"Updating the status of an unlocked task should work.": {
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
				return repo.UpdateTaskStatus(ctx, id, model.TaskStatusWork)
			},
		},

		"Updating the status of a locked task should fail.": {
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
				if err := repo.SetTaskLock(ctx, id, true); err != nil {
					return err
				}
				return repo.UpdateTaskStatus(ctx, id, model.TaskStatusDone)
			},
			expErr: model.ErrLocked,
		},

		"Locking a locked task should be refused by the store.": {
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
				if err := repo.SetTaskLock(ctx, id, true); err != nil {
					return err
				}
				return repo.SetTaskLock(ctx, id, true)
			},
			expErr: model.ErrLocked,
		},

		"Unlocking a locked task should allow updates again.": {
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
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
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
				return repo.UpdateTaskStatus(ctx, "missing", model.TaskStatusWork)
			},
			expErr: model.ErrNotFound,
		},

		"Locking a missing task should fail.": {
			actions: func(ctx context.Context, repo *sqlite.Repository, id string) error {
				return repo.SetTaskLock(ctx, "missing", true)
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			ctx := context.Background()
			repo, _ := getTestRepository(t)
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
	repo, _ := getTestRepository(t)
	ids := []string{}
	for _, typ := range []string{"a", "b", "c"} {
		row, err := repo.CreateTask(ctx, model.NewTask{Type: typ, Owner: "me", HandlerName: "h-" + typ})
		require.NoError(err)
		ids = append(ids, row.ID)
	}
	require.NoError(repo.UpdateTaskStatus(ctx, ids[1], model.TaskStatusWork))

	work := model.TaskStatusWork
	got, err := repo.ListTasks(ctx, model.ListTasksOpts{Status: &work})
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("b", got[0].Type)

	got, err = repo.ListTasks(ctx, model.ListTasksOpts{HandlerName: "h-c"})
	require.NoError(err)
	require.Len(got, 1)
	assert.Equal("c", got[0].Type)

	got, err = repo.ListTasks(ctx, model.ListTasksOpts{Limit: 2})
	require.NoError(err)
	require.Len(got, 2)
	assert.Equal([]string{"a", "b"}, []string{got[0].Type, got[1].Type})
}
