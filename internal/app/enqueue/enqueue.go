package enqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage"
)

// ServiceConfig is the configuration for the enqueue service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.enqueue"})

	return nil
}

// Service stores new tasks ready to be claimed by the engines.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new enqueue service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the enqueue request parameters.
type Request struct {
	Type string
	// Payload must be JSON, empty means no payload.
	Payload     string
	Owner       string
	Description string
	// HandlerName targets an engine, empty means any.
	HandlerName string
}

// Run validates and stores the task.
func (s *Service) Run(ctx context.Context, req Request) (*model.TaskRow, error) {
	nt := model.NewTask{
		Type:        req.Type,
		Owner:       req.Owner,
		Description: req.Description,
		HandlerName: req.HandlerName,
	}

	if req.Payload != "" {
		if !json.Valid([]byte(req.Payload)) {
			return nil, fmt.Errorf("payload is not JSON: %w", model.ErrNotValid)
		}
		nt.Payload = []byte(req.Payload)
	}

	if err := nt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	task, err := s.repo.CreateTask(ctx, nt)
	if err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	s.logger.WithValues(log.Kv{"task-id": task.ID, "task-type": task.Type}).Infof("Task enqueued")
	return task, nil
}
