package conveyor

import (
	"context"
	"sort"
	"sync"
)

// HandlerFunc executes a task. It should resolve the task using the task lifecycle
// operations, otherwise the engine resolves it based on the auto resolution.
// A returned error denies the task if it's still unresolved.
type HandlerFunc func(ctx context.Context, t *Task) error

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: map[string]HandlerFunc{}}
}

func (h *handlerRegistry) register(taskType string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[taskType] = fn
}

func (h *handlerRegistry) get(taskType string) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[taskType]
	return fn, ok
}

func (h *handlerRegistry) types() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	types := make([]string, 0, len(h.handlers))
	for t := range h.handlers {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}
