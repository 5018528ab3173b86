package conveyor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/conveyor"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
	"github.com/slok/conveyor/internal/storage/memory"
)

func strPtr(s string) *string { return &s }

type endedTask struct {
	row model.TaskRow
	res model.Resolution
}

type pollCause struct {
	taskID string
	cause  error
}

// hookRecorder records every engine notification.
type hookRecorder struct {
	mu          sync.Mutex
	started     int
	stopped     int
	ended       []endedTask
	causes      []pollCause
	resFailures []string
}

func (h *hookRecorder) hook() hook.Hook {
	return hook.Funcs{
		HookName: "test-recorder",
		PollingStartedFunc: func(context.Context, string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.started++
			return nil
		},
		PollingStoppedFunc: func(context.Context, string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.stopped++
			return nil
		},
		TaskEndedFunc: func(_ context.Context, row model.TaskRow, res model.Resolution) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.ended = append(h.ended, endedTask{row: row, res: res})
			return nil
		},
		PollCauseFunc: func(_ context.Context, id string, cause error) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.causes = append(h.causes, pollCause{taskID: id, cause: cause})
			return nil
		},
		TaskResolutionFailedFunc: func(_ context.Context, row model.TaskRow, _ error) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.resFailures = append(h.resFailures, row.ID)
			return nil
		},
	}
}

func (h *hookRecorder) endedTasks() []endedTask {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]endedTask(nil), h.ended...)
}

func (h *hookRecorder) pollCauses() []pollCause {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pollCause(nil), h.causes...)
}

func (h *hookRecorder) counts() (started, stopped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started, h.stopped
}

func newMemoryRepo(t *testing.T, rows ...model.TaskRow) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	for _, row := range rows {
		_, err := repo.InsertTaskRow(row)
		require.NoError(t, err)
	}
	return repo
}

func newEngine(t *testing.T, repo storage.TaskRepository, mod func(c *conveyor.Config)) (*conveyor.Engine, *hookRecorder) {
	t.Helper()

	rec := &hookRecorder{}
	hooks := hook.NewRegistry(nil)
	hooks.Register(rec.hook())

	cfg := conveyor.Config{
		HandlerName: "test",
		Repository:  repo,
		AutoResolve: true,
		Hooks:       hooks,
	}
	if mod != nil {
		mod(&cfg)
	}

	e, err := conveyor.New(cfg)
	require.NoError(t, err)

	return e, rec
}

func getRow(t *testing.T, repo storage.TaskRepository, id string) model.TaskRow {
	t.Helper()
	row, err := repo.GetTask(context.Background(), id)
	require.NoError(t, err)
	return *row
}
