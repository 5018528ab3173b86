package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

var _ storage.TaskRepository = &Repository{}

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository.
type Repository struct {
	tasks    map[string]model.TaskRow
	sequence int64
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.TaskRow),
		logger: cfg.Logger,
	}, nil
}

// CreateTask stores a new task with status new.
func (r *Repository) CreateTask(ctx context.Context, t model.NewTask) (*model.TaskRow, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	handler := t.HandlerName
	if handler == "" {
		handler = model.AnyHandler
	}
	status := string(model.TaskStatusNew)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequence++
	row := model.TaskRow{
		Sequence:    r.sequence,
		ID:          ulid.Make().String(),
		Type:        t.Type,
		Payload:     t.Payload,
		Status:      &status,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Owner:       t.Owner,
		Description: t.Description,
		HandlerName: handler,
	}
	r.tasks[row.ID] = copyRow(row)
	r.logger.Debugf("Created task in repository: %s", row.ID)

	return &row, nil
}

// InsertTaskRow stores a row as is, without validation. The sequence is assigned
// when the row doesn't have one. It's meant to seed tests with rows that
// the regular enqueue flow would never produce.
func (r *Repository) InsertTaskRow(row model.TaskRow) (model.TaskRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	if _, ok := r.tasks[row.ID]; ok {
		return model.TaskRow{}, fmt.Errorf("task %s: %w", row.ID, model.ErrAlreadyExists)
	}

	if row.Sequence == 0 {
		r.sequence++
		row.Sequence = r.sequence
	} else if row.Sequence > r.sequence {
		r.sequence = row.Sequence
	}

	r.tasks[row.ID] = copyRow(row)
	return copyRow(row), nil
}

// ClaimTasks returns the new and unlocked tasks for the handler, ordered by sequence.
func (r *Repository) ClaimTasks(ctx context.Context, handlerName string) ([]model.TaskRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := []model.TaskRow{}
	for _, row := range r.tasks {
		if row.Locked || row.Status == nil || *row.Status != string(model.TaskStatusNew) {
			continue
		}
		if row.HandlerName != handlerName && row.HandlerName != model.AnyHandler {
			continue
		}
		rows = append(rows, copyRow(row))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	return rows, nil
}

// UpdateTaskStatus sets the status of an unlocked task.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	if row.Locked {
		return fmt.Errorf("could not update task %s status: %w", id, model.ErrLocked)
	}

	s := string(status)
	row.Status = &s
	r.tasks[id] = row
	r.logger.Debugf("Task %s marked as %s", id, status)

	return nil
}

// SetTaskLock locks or unlocks a task.
func (r *Repository) SetTaskLock(ctx context.Context, id string, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	if row.Locked && locked {
		return fmt.Errorf("could not lock task %s: %w", id, model.ErrLocked)
	}

	row.Locked = locked
	r.tasks[id] = row

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.TaskRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	rowCopy := copyRow(row)
	return &rowCopy, nil
}

// ListTasks returns tasks ordered by sequence.
func (r *Repository) ListTasks(ctx context.Context, opts model.ListTasksOpts) ([]model.TaskRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := []model.TaskRow{}
	for _, row := range r.tasks {
		if opts.Status != nil && (row.Status == nil || *row.Status != string(*opts.Status)) {
			continue
		}
		if opts.HandlerName != "" && row.HandlerName != opts.HandlerName {
			continue
		}
		rows = append(rows, copyRow(row))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	return rows, nil
}

func copyRow(row model.TaskRow) model.TaskRow {
	if row.Payload != nil {
		row.Payload = append([]byte(nil), row.Payload...)
	}
	if row.Status != nil {
		s := *row.Status
		row.Status = &s
	}
	return row
}
