// Package storagemock has testify mocks for the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

var _ storage.TaskRepository = &MockTaskRepository{}

// MockTaskRepository is a mock of storage.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ClaimTasks(ctx context.Context, handlerName string) ([]model.TaskRow, error) {
	args := m.Called(ctx, handlerName)
	rows, _ := args.Get(0).([]model.TaskRow)
	return rows, args.Error(1)
}

func (m *MockTaskRepository) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockTaskRepository) SetTaskLock(ctx context.Context, id string, locked bool) error {
	args := m.Called(ctx, id, locked)
	return args.Error(0)
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, t model.NewTask) (*model.TaskRow, error) {
	args := m.Called(ctx, t)
	row, _ := args.Get(0).(*model.TaskRow)
	return row, args.Error(1)
}

func (m *MockTaskRepository) GetTask(ctx context.Context, id string) (*model.TaskRow, error) {
	args := m.Called(ctx, id)
	row, _ := args.Get(0).(*model.TaskRow)
	return row, args.Error(1)
}

func (m *MockTaskRepository) ListTasks(ctx context.Context, opts model.ListTasksOpts) ([]model.TaskRow, error) {
	args := m.Called(ctx, opts)
	rows, _ := args.Get(0).([]model.TaskRow)
	return rows, args.Error(1)
}
