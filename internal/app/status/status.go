package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

// ServiceConfig is the configuration for the status service.
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

	return nil
}

// Service retrieves a single task.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	ID string
}

// Run retrieves a task by ID.
func (s *Service) Run(ctx context.Context, req Request) (*model.TaskRow, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("Getting task %s", id)
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return task, nil
}
