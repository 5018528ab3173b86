package lib

import (
	"context"
	"fmt"
	"time"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/conveyor/internal/app/enqueue"
	"github.com/slok/conveyor/internal/app/list"
	"github.com/slok/conveyor/internal/app/status"
	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/conventions"
	"github.com/slok/conveyor/internal/conveyor"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/storage"
	"github.com/slok/conveyor/internal/storage/memory"
	"github.com/slok/conveyor/internal/storage/postgres"
	"github.com/slok/conveyor/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// Only HandlerName is required. An otherwise empty Config{} uses
// ~/.conveyor/conveyor.db as the store and an unbounded worker pool.
type Config struct {
	// HandlerName is the engine identity, it only executes tasks addressed to
	// it or to any handler. Required.
	HandlerName string

	// Store selects the task store.
	// Default: [StoreSQLite].
	Store StoreDriver

	// DBPath is the SQLite database path.
	// Default: ~/.conveyor/conveyor.db.
	DBPath string

	// PostgresURL is the PostgreSQL connection URL, required by [StorePostgres].
	PostgresURL string

	// Workers is the number of concurrent task executions.
	// Default: 0 (unbounded).
	Workers int

	// AutoResolve completes the tasks that the handler left unresolved, when
	// false they are denied.
	AutoResolve bool

	// PollInterval is the delay between poll cycles.
	// Default: 1s.
	PollInterval time.Duration

	// AuditDir enables the audit session files on the directory.
	// Default: disabled.
	AuditDir string

	// ResolutionErrorPolicy selects how task resolutions that can't be stored
	// are reported.
	// Default: [ResolutionErrorPolicyLog].
	ResolutionErrorPolicy ResolutionErrorPolicy

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Store == "" {
		c.Store = StoreSQLite
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(homedir.HomeDir())
	}

	if c.Store == StorePostgres && c.PostgresURL == "" {
		return fmt.Errorf("postgres url is required: %w", ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point, it runs a task engine and manages the
// tasks of its store.
//
// Create a Client with [New] and release its resources with [Client.Close].
type Client struct {
	repo    storage.TaskRepository
	engine  *conveyor.Engine
	audit   audit.Logger
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client with its store and engine.
//
// The caller must call [Client.Close] when done to release the store
// connections. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{HandlerName: "mailer"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repo, closeFn, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	auditLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
		Dir:    cfg.AuditDir,
		Logger: cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("could not create audit logger: %w", err)
	}

	engine, err := conveyor.New(conveyor.Config{
		HandlerName:           cfg.HandlerName,
		Repository:            repo,
		WorkerPoolSize:        cfg.Workers,
		AutoResolve:           cfg.AutoResolve,
		PollInterval:          cfg.PollInterval,
		Audit:                 auditLogger,
		Hooks:                 hook.NewRegistry(cfg.Logger),
		ResolutionErrorPolicy: cfg.ResolutionErrorPolicy,
		Logger:                cfg.Logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, mapError(fmt.Errorf("could not create engine: %w", err))
	}

	return &Client{
		repo:    repo,
		engine:  engine,
		audit:   auditLogger,
		logger:  cfg.Logger,
		closeFn: closeFn,
	}, nil
}

func newRepository(ctx context.Context, cfg Config) (storage.TaskRepository, func() error, error) {
	switch cfg.Store {
	case StoreSQLite:
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, repo.Close, nil
	case StorePostgres:
		repo, err := postgres.NewRepository(ctx, postgres.RepositoryConfig{
			ConnString: cfg.PostgresURL,
			Migrate:    true,
			Logger:     cfg.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, repo.Close, nil
	case StoreMemory:
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unsupported store %q: %w", cfg.Store, ErrNotValid)
}

// Close stops the engine if it's running, waits for the executions in progress
// and releases the store connections. After Close returns, the client must not
// be used.
func (c *Client) Close() error {
	ctx := context.Background()
	c.engine.Stop(ctx)
	if err := c.engine.Wait(ctx); err != nil {
		c.logger.Warningf("Could not wait for the engine: %s", err)
	}

	if err := c.audit.Close(); err != nil {
		c.logger.Warningf("Could not close audit session: %s", err)
	}

	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// RegisterType sets the handler that executes the tasks of a type, replacing
// any previous one. Claimed tasks of unregistered types are denied.
func (c *Client) RegisterType(taskType string, h Handler) {
	c.engine.RegisterType(taskType, h)
}

// AddHook adds hooks that receive the engine events.
func (c *Client) AddHook(hs ...Hook) {
	c.engine.Hooks().Register(hs...)
}

// Start starts polling in the background. Starting a running client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	return c.engine.Start(ctx)
}

// Stop stops polling, executions in progress are not interrupted. Use
// [Client.Wait] to wait for them.
func (c *Client) Stop(ctx context.Context) {
	c.engine.Stop(ctx)
}

// Wait blocks until the engine is stopped and the executions in progress end,
// or the context is done.
func (c *Client) Wait(ctx context.Context) error {
	return c.engine.Wait(ctx)
}

// Running returns true when the engine is polling.
func (c *Client) Running() bool {
	return c.engine.Running()
}

// Run polls until the context is done, then stops and waits for the executions
// in progress.
func (c *Client) Run(ctx context.Context) error {
	return c.engine.Run(ctx)
}

// PollOnce runs a poll cycle on a polling client without waiting for the next
// poll interval. Returns [ErrNotRunning] when the client is not polling.
func (c *Client) PollOnce(ctx context.Context) error {
	return c.engine.PollOnce(ctx)
}

// RunOnce runs a single poll cycle and waits for its executions. Returns
// [ErrAlreadyRunning] when the engine is polling.
func (c *Client) RunOnce(ctx context.Context) error {
	return c.engine.RunOnce(ctx)
}

// Enqueue stores a new task.
//
// Returns [ErrNotValid] when a required field is missing or the payload is not JSON.
func (c *Client) Enqueue(ctx context.Context, opts EnqueueOpts) (*TaskInfo, error) {
	svc, err := enqueue.NewService(enqueue.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	row, err := svc.Run(ctx, enqueue.Request{
		Type:        opts.Type,
		Payload:     string(opts.Payload),
		Owner:       opts.Owner,
		Description: opts.Description,
		HandlerName: opts.HandlerName,
	})
	if err != nil {
		return nil, mapError(err)
	}

	t := fromInternalTask(*row)
	return &t, nil
}

// GetTask returns a task by ID.
//
// Returns [ErrNotFound] if the task does not exist.
func (c *Client) GetTask(ctx context.Context, id string) (*TaskInfo, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	row, err := svc.Run(ctx, status.Request{ID: id})
	if err != nil {
		return nil, mapError(err)
	}

	t := fromInternalTask(*row)
	return &t, nil
}

// ListTasks returns the tasks ordered by sequence. Pass nil opts to list all tasks.
func (c *Client) ListTasks(ctx context.Context, opts *ListTasksOpts) ([]TaskInfo, error) {
	svc, err := list.NewService(list.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := list.Request{}
	if opts != nil {
		if opts.Status != nil {
			req.Status = string(*opts.Status)
		}
		req.HandlerName = opts.HandlerName
		req.Limit = opts.Limit
	}

	rows, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTaskList(rows), nil
}
