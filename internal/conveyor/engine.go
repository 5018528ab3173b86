// Package conveyor is the task engine. It polls the store for the tasks of its
// handler name, executes them on a worker pool with the handler registered for
// their type and resolves them once the handler returns.
package conveyor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/storage"
	"github.com/slok/conveyor/internal/worker"
)

var (
	// ErrNotRunning is returned when an operation requires a started engine.
	ErrNotRunning = errors.New("engine is not running")
	// ErrAlreadyRunning is returned when an operation requires a stopped engine.
	ErrAlreadyRunning = errors.New("engine is already running")
)

// Engine polls, dispatches and resolves tasks.
type Engine struct {
	handlerName           string
	repo                  storage.TaskRepository
	poolSize              int
	autoResolve           bool
	pollInterval          time.Duration
	audit                 audit.Logger
	hooks                 *hook.Registry
	resolutionErrorPolicy ResolutionErrorPolicy
	logger                log.Logger
	handlers              *handlerRegistry

	// mu guards the running state.
	mu       sync.Mutex
	enabled  bool
	stopCh   chan struct{}
	loopDone chan struct{}
	pool     *worker.Pool

	// cycleMu avoids concurrent poll cycles.
	cycleMu sync.Mutex
}

// New returns a stopped engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		handlerName:           cfg.HandlerName,
		repo:                  cfg.Repository,
		poolSize:              cfg.WorkerPoolSize,
		autoResolve:           cfg.AutoResolve,
		pollInterval:          cfg.PollInterval,
		audit:                 cfg.Audit,
		hooks:                 cfg.Hooks,
		resolutionErrorPolicy: cfg.ResolutionErrorPolicy,
		logger:                cfg.Logger,
		handlers:              newHandlerRegistry(),
	}, nil
}

// RegisterType sets the handler of a task type, the last registration wins.
// Handlers can be registered while the engine is running.
func (e *Engine) RegisterType(taskType string, handler HandlerFunc) {
	e.handlers.register(taskType, handler)
}

// RegisteredTypes returns the task types with a handler, sorted.
func (e *Engine) RegisteredTypes() []string { return e.handlers.types() }

// Hooks returns the engine hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Running returns true if the engine has been started and not stopped.
func (e *Engine) Running() bool { return e.isEnabled() }

// Start starts polling in the background. Starting a running engine is a no-op.
// The context cancellation doesn't stop the engine, Stop does.
func (e *Engine) Start(ctx context.Context) error {
	r, err := e.start(ctx)
	if err != nil {
		return err
	}
	if r == nil {
		e.logger.Debugf("Engine already running")
		return nil
	}

	// Hooks see the polling start before any event of the loop.
	e.hooks.EmitPollingStarted(ctx, e.handlerName)
	go e.loop(context.WithoutCancel(ctx), r.stopCh, r.loopDone, r.pool)

	return nil
}

// Stop stops polling. Executions in progress are not interrupted, use Wait to
// wait for them. Stopping a stopped engine is a no-op.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	close(e.stopCh)
	e.pool.Shutdown()
	e.mu.Unlock()

	e.audit.PollingShutdown()
	e.logger.Infof("Polling stopped")
	e.hooks.EmitPollingStopped(ctx, e.handlerName)
}

// Wait blocks until the engine is stopped and every task execution has finished,
// then closes the audit session.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	pool, loopDone := e.pool, e.loopDone
	e.mu.Unlock()

	if pool == nil {
		return nil
	}

	select {
	case <-loopDone:
	case <-ctx.Done():
		return fmt.Errorf("waiting for poll loop: %w", ctx.Err())
	}

	if err := pool.Wait(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A restart opens its own session.
	if !e.enabled && e.pool == pool {
		if err := e.audit.Close(); err != nil {
			e.logger.Warningf("Could not close audit session: %s", err)
		}
	}

	return nil
}

// Run starts the engine and blocks until the context is done, then stops it and
// waits for the executions in progress.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx := context.WithoutCancel(ctx)
	e.Stop(stopCtx)
	return e.Wait(stopCtx)
}

// PollOnce runs a poll cycle on a running engine, in addition to the ones of
// the poll loop.
func (e *Engine) PollOnce(ctx context.Context) error {
	e.mu.Lock()
	enabled, pool := e.enabled, e.pool
	e.mu.Unlock()

	if !enabled {
		return ErrNotRunning
	}

	return e.cycle(ctx, pool)
}

// RunOnce starts the engine without the poll loop, runs a single poll cycle,
// stops the engine and waits for the executions.
func (e *Engine) RunOnce(ctx context.Context) error {
	r, err := e.start(ctx)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrAlreadyRunning
	}
	close(r.loopDone)
	e.hooks.EmitPollingStarted(ctx, e.handlerName)

	cycleErr := e.cycle(ctx, r.pool)

	e.Stop(ctx)
	if err := e.Wait(ctx); err != nil {
		return err
	}

	return cycleErr
}

type run struct {
	pool     *worker.Pool
	stopCh   chan struct{}
	loopDone chan struct{}
}

// start prepares a new run, returns nil when the engine is already running.
// The caller closes the loop done channel, by running the loop or directly.
func (e *Engine) start(ctx context.Context) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled {
		return nil, nil
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		Size:   e.poolSize,
		Logger: e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	if err := e.audit.NewSession(); err != nil {
		e.logger.Warningf("Could not open audit session: %s", err)
	}
	e.audit.PollingStarted()

	e.pool = pool
	e.stopCh = make(chan struct{})
	e.loopDone = make(chan struct{})
	e.enabled = true

	e.logger.Infof("Polling started with %d worker(s) for types %v", e.poolSize, e.handlers.types())
	return &run{pool: pool, stopCh: e.stopCh, loopDone: e.loopDone}, nil
}

// loop runs poll cycles until stopped, waiting the poll interval between the
// end of a cycle and the start of the next one.
func (e *Engine) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}, pool *worker.Pool) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		// A stop may race the timer.
		select {
		case <-stopCh:
			return
		default:
		}

		if err := e.cycle(ctx, pool); err != nil {
			e.logger.WithCtxValues(ctx).Errorf("Poll cycle failed: %s", err)
		}

		timer.Reset(e.pollInterval)
	}
}

func (e *Engine) cycle(ctx context.Context, pool *worker.Pool) error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	tasks, err := e.poll(ctx)
	if err != nil {
		return err
	}

	e.dispatch(ctx, pool, tasks)
	return nil
}

func (e *Engine) isEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}
