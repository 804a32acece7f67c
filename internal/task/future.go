package task

import (
	"context"
	"sync"
)

// Work is the body of a one-shot future. It must poll ctx at fine
// granularity (once per processed row or point) and return early once
// ctx is done.
type Work[T any] func(ctx context.Context) (T, error)

type handlers[T any] struct {
	success func(T)
	fail    func(error)
	cancel  func()
	thread  Thread
}

func (h *handlers[T]) dispatch(exec *Executor, fn func()) {
	if fn == nil {
		return
	}
	if h.thread == OnWorker || exec == nil {
		fn()
		return
	}
	exec.Post(fn)
}

func (h *handlers[T]) deliver(exec *Executor, st State, v T, err error) {
	switch st {
	case Success:
		if h.success != nil {
			fn := h.success
			h.dispatch(exec, func() { fn(v) })
		}
	case Error:
		if h.fail != nil {
			fn := h.fail
			h.dispatch(exec, func() { fn(err) })
		}
	case Canceled:
		h.dispatch(exec, h.cancel)
	}
}

// invoke runs fn and turns a panic into a PanicError.
func invoke[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &PanicError{Value: r}
		}
	}()
	return fn()
}

// resolve picks the terminal state of a finished run. An observed token
// always wins over whatever the work returned.
func resolve(ctx context.Context, err error) State {
	if ctx.Err() != nil {
		return Canceled
	}
	if err != nil {
		return Error
	}
	return Success
}

// Future is a one-shot background task handle.
//
// Register callbacks before calling Process. Callbacks run on the executor
// unless DeliverOn(OnWorker) was requested.
type Future[T any] struct {
	runner Runner
	exec   *Executor

	mu    sync.Mutex
	state State
	stop  context.CancelFunc
	value T
	err   error
	hooks handlers[T]
}

// NewFuture creates a Pending future that runs work on runner and
// delivers results through exec.
func NewFuture[T any](runner Runner, exec *Executor) *Future[T] {
	return &Future[T]{runner: runner, exec: exec}
}

// OnSuccess sets the success callback.
func (f *Future[T]) OnSuccess(fn func(T)) *Future[T] {
	f.mu.Lock()
	f.hooks.success = fn
	f.mu.Unlock()
	return f
}

// OnError sets the error callback.
func (f *Future[T]) OnError(fn func(error)) *Future[T] {
	f.mu.Lock()
	f.hooks.fail = fn
	f.mu.Unlock()
	return f
}

// OnCancel sets the cancel callback.
func (f *Future[T]) OnCancel(fn func()) *Future[T] {
	f.mu.Lock()
	f.hooks.cancel = fn
	f.mu.Unlock()
	return f
}

// DeliverOn selects the goroutine callbacks run on.
func (f *Future[T]) DeliverOn(t Thread) *Future[T] {
	f.mu.Lock()
	f.hooks.thread = t
	f.mu.Unlock()
	return f
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the value and error of a finished run.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Process moves the future to Processing and runs work on a worker.
func (f *Future[T]) Process(work Work[T]) error {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return ErrNotPending
	}
	ctx, stop := context.WithCancel(context.Background())
	f.state = Processing
	f.stop = stop
	f.mu.Unlock()

	err := f.runner.Submit(func() {
		v, err := invoke(func() (T, error) { return work(ctx) })
		f.finish(resolve(ctx, err), v, err)
	})
	if err != nil {
		var zero T
		f.finish(Error, zero, err)
	}
	return nil
}

func (f *Future[T]) finish(st State, v T, err error) {
	f.mu.Lock()
	if f.state != Processing {
		f.mu.Unlock()
		return
	}
	f.state = st
	if st == Success {
		f.value = v
	}
	if st == Error {
		f.err = err
	}
	if f.stop != nil {
		f.stop()
	}
	hooks := f.hooks
	f.mu.Unlock()

	hooks.deliver(f.exec, st, v, err)
}

// Cancel signals the token of a running future. A Pending future moves to
// Canceled at once; a terminal future is left alone.
func (f *Future[T]) Cancel() {
	f.mu.Lock()
	switch f.state {
	case Processing:
		f.stop()
		f.mu.Unlock()
	case Pending:
		f.state = Canceled
		hooks := f.hooks
		f.mu.Unlock()
		var zero T
		hooks.deliver(f.exec, Canceled, zero, nil)
	default:
		f.mu.Unlock()
	}
}
