package conveyor

import (
	"fmt"
	"time"

	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/storage"
	"github.com/slok/conveyor/internal/worker"
)

// ResolutionErrorPolicy selects how the engine reports a task resolution that
// could not be stored.
type ResolutionErrorPolicy string

const (
	// ResolutionErrorPolicyLog only logs the failure.
	ResolutionErrorPolicyLog ResolutionErrorPolicy = "log"
	// ResolutionErrorPolicyNotify logs the failure and notifies the TaskResolutionFailed hooks.
	ResolutionErrorPolicyNotify ResolutionErrorPolicy = "notify"
)

const defaultPollInterval = time.Second

// Config is the engine configuration, it can't be changed once the engine is created.
type Config struct {
	// HandlerName is the identity of the engine, it only claims tasks for this
	// handler name or for any handler.
	HandlerName string
	Repository  storage.TaskRepository
	// WorkerPoolSize is the number of concurrent task executions, -1 (or 0) is unbounded.
	WorkerPoolSize int
	// AutoResolve completes the tasks that the handler left unresolved, when false
	// they are denied.
	AutoResolve bool
	// PollInterval is the delay between the end of a poll cycle and the start of the next.
	PollInterval          time.Duration
	Audit                 audit.Logger
	Hooks                 *hook.Registry
	ResolutionErrorPolicy ResolutionErrorPolicy
	Logger                log.Logger
}

func (c *Config) defaults() error {
	if c.HandlerName == "" {
		return fmt.Errorf("handler name is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.WorkerPoolSize == 0 {
		c.WorkerPoolSize = worker.Unbounded
	}
	if c.WorkerPoolSize < worker.Unbounded {
		return fmt.Errorf("worker pool size must be positive or %d (unbounded)", worker.Unbounded)
	}

	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval can't be negative")
	}

	if c.Audit == nil {
		c.Audit = audit.Noop
	}

	switch c.ResolutionErrorPolicy {
	case "":
		c.ResolutionErrorPolicy = ResolutionErrorPolicyLog
	case ResolutionErrorPolicyLog, ResolutionErrorPolicyNotify:
	default:
		return fmt.Errorf("unknown resolution error policy %q", c.ResolutionErrorPolicy)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "conveyor.Engine", "handler": c.HandlerName})

	if c.Hooks == nil {
		c.Hooks = hook.NewRegistry(c.Logger)
	}

	return nil
}
