package task

import "sync"

// Executor is a single-consumer callback queue. Producers on any goroutine
// Post callbacks; the owning loop runs them in FIFO order by calling Drain
// once per tick.
type Executor struct {
	mu    sync.Mutex
	queue []func()
	spare []func()
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Post queues fn to run on the next Drain. Safe for concurrent use.
func (e *Executor) Post(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Drain runs every callback queued before the call and returns how many ran.
// Callbacks posted while draining are left for the next Drain so a tick
// never spins on work it produces itself.
func (e *Executor) Drain() int {
	e.mu.Lock()
	batch := e.queue
	e.queue = e.spare[:0]
	e.mu.Unlock()

	for i, fn := range batch {
		fn()
		batch[i] = nil
	}

	e.mu.Lock()
	e.spare = batch[:0]
	e.mu.Unlock()
	return len(batch)
}
