// Package worker runs fire-and-forget background jobs with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"docvault/internal/logging"
)

// ErrClosed is returned by Submit after Shutdown has started.
var ErrClosed = errors.New("worker pool is shut down")

// Job is one unit of background work. The context is cancelled when the pool
// is shut down past its deadline.
type Job func(ctx context.Context)

// Pool runs at most size jobs at a time. Submit never blocks the caller: jobs
// beyond the limit wait for a slot in their own goroutine.
type Pool struct {
	sem    *semaphore.Weighted
	log    *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(size int, log *logging.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules job and returns immediately.
func (p *Pool) Submit(name string, job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.log.Warn("job_dropped", logging.Fields{"job": name, "error": err})
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("job_panicked", logging.Fields{"job": name, "panic": r})
			}
		}()
		job(p.ctx)
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for queued and running ones until ctx
// is done, at which point remaining jobs see a cancelled context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
