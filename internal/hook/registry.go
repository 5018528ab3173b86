package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/model"
)

type entry[T any] struct {
	name string
	hook T
}

// Registry holds the registered hooks and notifies them. Hooks are type cached
// at registration so every emit only iterates the hooks implementing the event.
// Hooks are notified in registration order.
type Registry struct {
	logger log.Logger

	mu                   sync.RWMutex
	hooks                []Hook
	pollingStarted       []entry[PollingStarted]
	pollingStopped       []entry[PollingStopped]
	taskEnded            []entry[TaskEnded]
	pollCaused           []entry[PollCaused]
	taskResolutionFailed []entry[TaskResolutionFailed]
}

// NewRegistry returns an empty registry.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.Noop
	}
	return &Registry{logger: logger.WithValues(log.Kv{"svc": "hook.Registry"})}
}

// Register adds hooks to the registry.
func (r *Registry) Register(hs ...Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range hs {
		if h == nil {
			continue
		}
		r.hooks = append(r.hooks, h)
		name := h.Name()

		if x, ok := h.(PollingStarted); ok {
			r.pollingStarted = append(r.pollingStarted, entry[PollingStarted]{name, x})
		}
		if x, ok := h.(PollingStopped); ok {
			r.pollingStopped = append(r.pollingStopped, entry[PollingStopped]{name, x})
		}
		if x, ok := h.(TaskEnded); ok {
			r.taskEnded = append(r.taskEnded, entry[TaskEnded]{name, x})
		}
		if x, ok := h.(PollCaused); ok {
			r.pollCaused = append(r.pollCaused, entry[PollCaused]{name, x})
		}
		if x, ok := h.(TaskResolutionFailed); ok {
			r.taskResolutionFailed = append(r.taskResolutionFailed, entry[TaskResolutionFailed]{name, x})
		}
	}
}

// Hooks returns the registered hooks.
func (r *Registry) Hooks() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// EmitPollingStarted notifies the hooks implementing PollingStarted.
func (r *Registry) EmitPollingStarted(ctx context.Context, handlerName string) {
	for _, e := range snapshot(r, func() []entry[PollingStarted] { return r.pollingStarted }) {
		r.call("OnPollingStarted", e.name, func() error { return e.hook.OnPollingStarted(ctx, handlerName) })
	}
}

// EmitPollingStopped notifies the hooks implementing PollingStopped.
func (r *Registry) EmitPollingStopped(ctx context.Context, handlerName string) {
	for _, e := range snapshot(r, func() []entry[PollingStopped] { return r.pollingStopped }) {
		r.call("OnPollingStopped", e.name, func() error { return e.hook.OnPollingStopped(ctx, handlerName) })
	}
}

// EmitTaskEnded notifies the hooks implementing TaskEnded.
func (r *Registry) EmitTaskEnded(ctx context.Context, task model.TaskRow, res model.Resolution) {
	for _, e := range snapshot(r, func() []entry[TaskEnded] { return r.taskEnded }) {
		r.call("OnTaskEnded", e.name, func() error { return e.hook.OnTaskEnded(ctx, task, res) })
	}
}

// EmitPollCause notifies the hooks implementing PollCaused.
func (r *Registry) EmitPollCause(ctx context.Context, taskID string, cause error) {
	for _, e := range snapshot(r, func() []entry[PollCaused] { return r.pollCaused }) {
		r.call("OnPollCause", e.name, func() error { return e.hook.OnPollCause(ctx, taskID, cause) })
	}
}

// EmitTaskResolutionFailed notifies the hooks implementing TaskResolutionFailed.
func (r *Registry) EmitTaskResolutionFailed(ctx context.Context, task model.TaskRow, err error) {
	for _, e := range snapshot(r, func() []entry[TaskResolutionFailed] { return r.taskResolutionFailed }) {
		r.call("OnTaskResolutionFailed", e.name, func() error { return e.hook.OnTaskResolutionFailed(ctx, task, err) })
	}
}

func snapshot[T any](r *Registry, get func() []entry[T]) []entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry[T](nil), get()...)
}

func (r *Registry) call(event, name string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logHookError(event, name, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := fn(); err != nil {
		r.logHookError(event, name, err)
	}
}

func (r *Registry) logHookError(event, name string, err error) {
	r.logger.WithValues(log.Kv{"hook": name, "event": event}).Warningf("Hook failed: %s", err)
}
