// Package handlers has the task handlers that can be used from the CLI without
// writing Go code.
package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/slok/conveyor/internal/conveyor"
	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

const (
	// Log logs the task and leaves the resolution to the engine.
	Log = "log"
	// Noop does nothing and leaves the resolution to the engine.
	Noop = "noop"
	// Complete completes the task.
	Complete = "complete"
	// Deny denies the task.
	Deny = "deny"
	// Fail returns an error, so the engine denies the task.
	Fail = "fail"
)

var builtins = map[string]func(logger log.Logger) conveyor.HandlerFunc{
	Log: func(logger log.Logger) conveyor.HandlerFunc {
		return func(ctx context.Context, t *conveyor.Task) error {
			logger.WithCtxValues(ctx).WithValues(log.Kv{
				"task-id":    t.ID(),
				"task-type":  t.Type(),
				"task-owner": t.Owner(),
				"task-seq":   t.Sequence(),
			}).Infof("Task received with payload %s", t.RawPayload())
			return nil
		}
	},
	Noop: func(log.Logger) conveyor.HandlerFunc {
		return func(context.Context, *conveyor.Task) error { return nil }
	},
	Complete: func(log.Logger) conveyor.HandlerFunc {
		return func(ctx context.Context, t *conveyor.Task) error { return t.Complete(ctx) }
	},
	Deny: func(log.Logger) conveyor.HandlerFunc {
		return func(ctx context.Context, t *conveyor.Task) error { return t.Deny(ctx) }
	},
	Fail: func(log.Logger) conveyor.HandlerFunc {
		return func(_ context.Context, t *conveyor.Task) error {
			return fmt.Errorf("task %s of type %s failed on purpose", t.ID(), t.Type())
		}
	},
}

// New returns the built-in handler with the name.
func New(name string, logger log.Logger) (conveyor.HandlerFunc, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown handler %q (available: %v): %w", name, Names(), model.ErrNotValid)
	}

	if logger == nil {
		logger = log.Noop
	}

	return fn(logger.WithValues(log.Kv{"svc": "handlers." + name})), nil
}

// Names returns the built-in handler names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register registers on the engine the built-in handlers of a task type to
// handler name mapping.
func Register(e *conveyor.Engine, typeHandlers map[string]string, logger log.Logger) error {
	for taskType, name := range typeHandlers {
		fn, err := New(name, logger)
		if err != nil {
			return fmt.Errorf("could not register handler for type %q: %w", taskType, err)
		}
		e.RegisterType(taskType, fn)
	}

	return nil
}
