package list

import (
	"context"
	"fmt"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.list"})

	return nil
}

// Service lists stored tasks.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// Status is an optional raw status filter, parsed case insensitive.
	Status      string
	HandlerName string
	Limit       int
}

// Run lists the tasks ordered by sequence.
func (s *Service) Run(ctx context.Context, req Request) ([]model.TaskRow, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	opts := model.ListTasksOpts{
		HandlerName: req.HandlerName,
		Limit:       req.Limit,
	}
	if req.Status != "" {
		status, err := model.ParseTaskStatus(&req.Status)
		if err != nil {
			return nil, fmt.Errorf("invalid status filter: %w", err)
		}
		opts.Status = &status
	}

	tasks, err := s.repo.ListTasks(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	s.logger.Debugf("Found %d tasks", len(tasks))
	return tasks, nil
}
