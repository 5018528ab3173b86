// Package worker has the pool that executes the task units concurrently.
//
// A pool is either elastic (a goroutine per submitted unit, gone when the
// unit ends) or fixed (N goroutines draining an unbounded FIFO queue). In
// both cases Submit never blocks, and in a fixed pool units start in
// submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/slok/conveyor/internal/log"
)

// ErrPoolClosed is returned when submitting to a pool that has been shut down.
var ErrPoolClosed = errors.New("worker pool is closed")

// Unbounded is the pool size that makes the pool elastic.
const Unbounded = -1

// PoolConfig is the configuration for the worker pool.
type PoolConfig struct {
	// Size is the number of workers, Unbounded (or 0) spawns a worker per unit.
	Size int
	// Name prefixes the worker names in the logs.
	Name   string
	Logger log.Logger
}

func (c *PoolConfig) defaults() error {
	if c.Size == 0 {
		c.Size = Unbounded
	}
	if c.Size < Unbounded {
		return fmt.Errorf("size must be positive or %d (unbounded)", Unbounded)
	}
	if c.Name == "" {
		c.Name = "TaskWorker"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "worker.Pool"})
	return nil
}

// Pool runs submitted units concurrently.
type Pool struct {
	size   int
	name   string
	logger log.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	wg      sync.WaitGroup
	spawned atomic.Int64
	running atomic.Int64
}

// NewPool creates a pool, fixed pools start their workers right away.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pool{
		size:   cfg.Size,
		name:   cfg.Name,
		logger: cfg.Logger,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(p.nextWorkerName())
	}

	return p, nil
}

// Submit queues a unit for execution. It never blocks.
func (p *Pool) Submit(unit func()) error {
	if unit == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	if p.size == Unbounded {
		p.wg.Add(1)
		go func(name string) {
			defer p.wg.Done()
			p.exec(name, unit)
		}(p.nextWorkerName())
		return nil
	}

	p.queue = append(p.queue, unit)
	p.cond.Signal()
	return nil
}

// Shutdown stops accepting units. Already submitted units still run and running
// ones are not interrupted. Calling it more than once is safe.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.logger.Debugf("Worker pool shut down with %d queued units", len(p.queue))
}

// Wait blocks until the pool has been shut down and every submitted unit has finished,
// or the context is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// Running returns the number of units being executed.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Queued returns the number of units waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) worker(name string) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		unit := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.exec(name, unit)
	}
}

func (p *Pool) exec(name string, unit func()) {
	p.running.Add(1)
	defer p.running.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithValues(log.Kv{"worker": name}).Errorf("unit panicked: %v\n%s", r, debug.Stack())
		}
	}()

	unit()
}

func (p *Pool) nextWorkerName() string {
	return fmt.Sprintf("%s-%d", p.name, p.spawned.Add(1))
}
