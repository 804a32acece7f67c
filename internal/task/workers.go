package task

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("task: worker pool closed")

// Runner executes jobs off the calling goroutine.
type Runner interface {
	Submit(job func()) error
}

// WorkerPool manages goroutines for generation, load and save work.
type WorkerPool struct {
	jobQueue chan func()
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	closeOnce sync.Once
}

// NewWorkerPool starts workers goroutines fed by a queue of queueSize jobs.
// workers <= 0 uses one worker per CPU.
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = max(runtime.NumCPU(), 1)
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		jobQueue: make(chan func(), queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// Submit queues a job, blocking while the queue is full.
func (p *WorkerPool) Submit(job func()) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			job()
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers and waits for running jobs to return.
// Jobs still queued are dropped.
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// QueueLength returns the current number of queued jobs.
func (p *WorkerPool) QueueLength() int {
	return len(p.jobQueue)
}
