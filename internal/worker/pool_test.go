package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, nil)

	var running, peak atomic.Int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit("job", func(ctx context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(0), running.Load())
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	p := NewPool(1, nil)
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("slow", func(ctx context.Context) {
			select {
			case <-block:
			case <-ctx.Done():
			}
		}))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPool_ShutdownDeadline(t *testing.T) {
	p := NewPool(1, nil)
	var cancelled atomic.Bool
	require.NoError(t, p.Submit("stuck", func(ctx context.Context) {
		<-ctx.Done()
		cancelled.Store(true)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cancelled.Load())

	assert.ErrorIs(t, p.Submit("late", func(context.Context) {}), ErrClosed)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, nil)
	var ran atomic.Bool
	require.NoError(t, p.Submit("boom", func(context.Context) { panic("bad") }))
	require.NoError(t, p.Submit("after", func(context.Context) { ran.Store(true) }))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, ran.Load())
}
