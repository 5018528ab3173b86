package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/conveyor/internal/model"
)

const taskColumns = `sequence, id, type, payload, status, created_at, owner, description, handler_name, locked`

// CreateTask stores a new task with status new.
func (r *Repository) CreateTask(ctx context.Context, t model.NewTask) (*model.TaskRow, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	handler := t.HandlerName
	if handler == "" {
		handler = model.AnyHandler
	}

	var payload any
	if t.Payload != nil {
		payload = string(t.Payload)
	}
	var description any
	if t.Description != "" {
		description = t.Description
	}

	query := `
		INSERT INTO tasks (id, type, payload, status, created_at, owner, description, handler_name, locked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	id := ulid.Make().String()
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, id, t.Type, payload, model.TaskStatusNew, now.Unix(), t.Owner, description, handler); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return nil, fmt.Errorf("task already exists: %w", model.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", id)
	return r.GetTask(ctx, id)
}

// ClaimTasks returns the new and unlocked tasks for the handler, ordered by sequence.
func (r *Repository) ClaimTasks(ctx context.Context, handlerName string) ([]model.TaskRow, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = ? AND locked = 0 AND (handler_name = ? OR handler_name = ?)
		ORDER BY sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, model.TaskStatusNew, handlerName, model.AnyHandler)
	if err != nil {
		return nil, fmt.Errorf("could not query claimable tasks: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// UpdateTaskStatus sets the status of an unlocked task.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error {
	query := `UPDATE tasks SET status = ? WHERE id = ? AND locked = 0`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.mapWriteErr(id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if affected == 0 {
		// Tell apart a missing task from a locked one.
		var locked bool
		err := r.db.QueryRowContext(ctx, `SELECT locked FROM tasks WHERE id = ?`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
			}
			return fmt.Errorf("could not query task: %w", err)
		}
		return fmt.Errorf("could not update task %s status: %w", id, model.ErrLocked)
	}

	r.logger.Debugf("Task %s marked as %s", id, status)
	return nil
}

// SetTaskLock locks or unlocks a task.
func (r *Repository) SetTaskLock(ctx context.Context, id string, locked bool) error {
	query := `UPDATE tasks SET locked = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, locked, id)
	if err != nil {
		return r.mapWriteErr(id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Task %s lock set to %t", id, locked)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.TaskRow, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("could not query task: %w", err)
	}
	defer rows.Close()

	tasks, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return &tasks[0], nil
}

// ListTasks returns tasks ordered by sequence.
func (r *Repository) ListTasks(ctx context.Context, opts model.ListTasksOpts) ([]model.TaskRow, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	args := []any{}

	if opts.Status != nil {
		query += ` AND status = ?`
		args = append(args, *opts.Status)
	}
	if opts.HandlerName != "" {
		query += ` AND handler_name = ?`
		args = append(args, opts.HandlerName)
	}
	query += ` ORDER BY sequence ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (r *Repository) mapWriteErr(id string, err error) error {
	if strings.Contains(err.Error(), "task locked") {
		return fmt.Errorf("task %s: %w", id, model.ErrLocked)
	}
	return fmt.Errorf("could not update task: %w", err)
}

func scanRows(rows *sql.Rows) ([]model.TaskRow, error) {
	tasks := []model.TaskRow{}
	for rows.Next() {
		var (
			t           model.TaskRow
			payload     sql.NullString
			status      sql.NullString
			description sql.NullString
			createdAt   int64
		)

		err := rows.Scan(
			&t.Sequence,
			&t.ID,
			&t.Type,
			&payload,
			&status,
			&createdAt,
			&t.Owner,
			&description,
			&t.HandlerName,
			&t.Locked,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}

		if payload.Valid {
			t.Payload = []byte(payload.String)
		}
		if status.Valid {
			s := status.String
			t.Status = &s
		}
		t.Description = description.String
		t.CreatedAt = time.Unix(createdAt, 0).UTC()

		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	return tasks, nil
}
