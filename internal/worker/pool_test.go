package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/worker"
)

func TestNewPool(t *testing.T) {
	tests := map[string]struct {
		config worker.PoolConfig
		expErr bool
	}{
		"Unbounded pool should be created.": {
			config: worker.PoolConfig{Size: worker.Unbounded},
		},

		"Zero size should default to unbounded.": {
			config: worker.PoolConfig{},
		},

		"Fixed pool should be created.": {
			config: worker.PoolConfig{Size: 4, Logger: log.Noop},
		},

		"Negative size other than unbounded should fail.": {
			config: worker.PoolConfig{Size: -2},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := worker.NewPool(test.config)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			p.Shutdown()
			assert.NoError(t, p.Wait(context.Background()))
		})
	}
}

func TestPoolFixedSizeKeepsSubmissionOrder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p, err := worker.NewPool(worker.PoolConfig{Size: 1})
	require.NoError(err)

	var mu sync.Mutex
	got := []int{}
	for i := 1; i <= 20; i++ {
		i := i
		err := p.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
		require.NoError(err)
	}

	p.Shutdown()
	require.NoError(p.Wait(context.Background()))

	exp := []int{}
	for i := 1; i <= 20; i++ {
		exp = append(exp, i)
	}
	assert.Equal(exp, got)
}

func TestPoolFixedSizeCapsConcurrency(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p, err := worker.NewPool(worker.PoolConfig{Size: 2})
	require.NoError(err)

	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		require.NoError(p.Submit(func() { <-release }))
	}

	assert.Eventually(func() bool { return p.Running() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(3, p.Queued())

	close(release)
	p.Shutdown()
	require.NoError(p.Wait(context.Background()))
	assert.Equal(0, p.Running())
}

func TestPoolUnboundedRunsConcurrently(t *testing.T) {
	require := require.New(t)

	p, err := worker.NewPool(worker.PoolConfig{Size: worker.Unbounded})
	require.NoError(err)

	const units = 10
	var started sync.WaitGroup
	started.Add(units)
	release := make(chan struct{})
	for i := 0; i < units; i++ {
		require.NoError(p.Submit(func() {
			started.Done()
			<-release
		}))
	}

	// If units were not concurrent this would never return.
	started.Wait()
	close(release)
	p.Shutdown()
	require.NoError(p.Wait(context.Background()))
}

func TestPoolShutdown(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p, err := worker.NewPool(worker.PoolConfig{Size: 1})
	require.NoError(err)

	release := make(chan struct{})
	executed := make(chan int, 2)
	require.NoError(p.Submit(func() { <-release; executed <- 1 }))
	require.NoError(p.Submit(func() { executed <- 2 }))

	p.Shutdown()
	p.Shutdown()
	assert.ErrorIs(p.Submit(func() {}), worker.ErrPoolClosed)

	// Running units are not interrupted.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(p.Wait(ctx))

	// Queued units still run after shut down.
	close(release)
	require.NoError(p.Wait(context.Background()))
	assert.Equal(1, <-executed)
	assert.Equal(2, <-executed)
}

func TestPoolRecoversPanics(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p, err := worker.NewPool(worker.PoolConfig{Size: 1})
	require.NoError(err)

	done := make(chan struct{})
	require.NoError(p.Submit(func() { panic("boom") }))
	require.NoError(p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.Fail("the worker should survive a panicking unit")
	}

	p.Shutdown()
	require.NoError(p.Wait(context.Background()))
}
