package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage/postgres"
)

// getTestRepository connects to the database set on CONVEYOR_INTEGRATION_POSTGRES_URL,
// the tests are skipped when it's missing.
func getTestRepository(t *testing.T) *postgres.Repository {
	t.Helper()

	url := os.Getenv("CONVEYOR_INTEGRATION_POSTGRES_URL")
	if url == "" {
		t.Skip("CONVEYOR_INTEGRATION_POSTGRES_URL not set")
	}

	repo, err := postgres.NewRepository(context.Background(), postgres.RepositoryConfig{
		ConnString: url,
		Migrate:    true,
		Logger:     log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestRepositoryTaskLifecycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx := context.Background()
	repo := getTestRepository(t)

	handler := "pg-test-" + t.Name()
	row, err := repo.CreateTask(ctx, model.NewTask{
		Type:        "email",
		Owner:       "billing",
		Payload:     []byte(`{"to":"a@example.com"}`),
		HandlerName: handler,
	})
	require.NoError(err)
	require.NotNil(row.Status)
	assert.Equal("new", *row.Status)
	assert.False(row.Locked)

	claimed, err := repo.ClaimTasks(ctx, handler)
	require.NoError(err)
	found := false
	for _, c := range claimed {
		if c.ID == row.ID {
			found = true
		}
	}
	assert.True(found)

	require.NoError(repo.UpdateTaskStatus(ctx, row.ID, model.TaskStatusWork))
	require.NoError(repo.UpdateTaskStatus(ctx, row.ID, model.TaskStatusDone))
	require.NoError(repo.SetTaskLock(ctx, row.ID, true))

	err = repo.UpdateTaskStatus(ctx, row.ID, model.TaskStatusDeny)
	assert.ErrorIs(err, model.ErrLocked)
	err = repo.SetTaskLock(ctx, row.ID, true)
	assert.ErrorIs(err, model.ErrLocked)

	got, err := repo.GetTask(ctx, row.ID)
	require.NoError(err)
	assert.Equal("done", *got.Status)
	assert.True(got.Locked)

	require.NoError(repo.SetTaskLock(ctx, row.ID, false))
	require.NoError(repo.UpdateTaskStatus(ctx, row.ID, model.TaskStatusDeny))

	_, err = repo.GetTask(ctx, "not-a-uuid")
	assert.ErrorIs(err, model.ErrNotFound)
}
