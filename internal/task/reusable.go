package task

import (
	"context"
	"sync"
)

// ReusableWork is the body of a ReusableFuture, called with the arguments of
// the Process call it serves.
type ReusableWork[A, T any] func(ctx context.Context, arg A) (T, error)

// ReusableFuture is a long-lived future that is re-armed after every
// terminal state.
//
// Calling Process while a run is in flight cancels that run. Once the worker
// has observed the cancellation the work runs again with the newest
// arguments; intermediate requests are dropped. A superseded run does not
// invoke the cancel callback, only Cancel does. A Cancel followed by Process
// before the worker settles delivers the cancel, then serves the new
// arguments.
type ReusableFuture[A, T any] struct {
	runner Runner
	exec   *Executor
	work   ReusableWork[A, T]

	mu       sync.Mutex
	state    State
	stop     context.CancelFunc
	next     *A
	// canceled records a Cancel on the run in flight.
	canceled bool
	runs     int
	hooks    handlers[T]
}

// NewReusableFuture creates a re-armable future around work.
func NewReusableFuture[A, T any](runner Runner, exec *Executor, work ReusableWork[A, T]) *ReusableFuture[A, T] {
	return &ReusableFuture[A, T]{runner: runner, exec: exec, work: work}
}

// OnSuccess sets the success callback.
func (f *ReusableFuture[A, T]) OnSuccess(fn func(T)) *ReusableFuture[A, T] {
	f.mu.Lock()
	f.hooks.success = fn
	f.mu.Unlock()
	return f
}

// OnError sets the error callback.
func (f *ReusableFuture[A, T]) OnError(fn func(error)) *ReusableFuture[A, T] {
	f.mu.Lock()
	f.hooks.fail = fn
	f.mu.Unlock()
	return f
}

// OnCancel sets the cancel callback.
func (f *ReusableFuture[A, T]) OnCancel(fn func()) *ReusableFuture[A, T] {
	f.mu.Lock()
	f.hooks.cancel = fn
	f.mu.Unlock()
	return f
}

// DeliverOn selects the goroutine callbacks run on.
func (f *ReusableFuture[A, T]) DeliverOn(t Thread) *ReusableFuture[A, T] {
	f.mu.Lock()
	f.hooks.thread = t
	f.mu.Unlock()
	return f
}

// State returns Processing while a run is in flight, otherwise the
// terminal state of the last run (Pending before the first).
func (f *ReusableFuture[A, T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Runs returns how many times work has been started.
func (f *ReusableFuture[A, T]) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// Process starts a run with arg, or supersedes the run in flight.
func (f *ReusableFuture[A, T]) Process(arg A) {
	f.mu.Lock()
	if f.state == Processing {
		f.next = &arg
		f.stop()
		f.mu.Unlock()
		return
	}
	ctx, stop := context.WithCancel(context.Background())
	f.state = Processing
	f.stop = stop
	f.runs++
	f.mu.Unlock()

	err := f.runner.Submit(func() { f.loop(ctx, arg) })
	if err != nil {
		var zero T
		f.settle(Error, zero, err)
	}
}

// loop runs work and restarts it in place for as long as newer arguments
// keep arriving before a run settles.
func (f *ReusableFuture[A, T]) loop(ctx context.Context, arg A) {
	for {
		v, err := invoke(func() (T, error) { return f.work(ctx, arg) })

		f.mu.Lock()
		if f.next != nil {
			arg = *f.next
			f.next = nil
			var stop context.CancelFunc
			ctx, stop = context.WithCancel(context.Background())
			f.stop = stop
			f.runs++
			owed := f.canceled
			f.canceled = false
			hooks := f.hooks
			f.mu.Unlock()
			if owed {
				var zero T
				hooks.deliver(f.exec, Canceled, zero, nil)
			}
			continue
		}
		f.settleLocked(resolve(ctx, err), v, err)
		return
	}
}

func (f *ReusableFuture[A, T]) settle(st State, v T, err error) {
	f.mu.Lock()
	f.settleLocked(st, v, err)
}

// settleLocked records st and delivers it. It is called with f.mu held and
// releases it.
func (f *ReusableFuture[A, T]) settleLocked(st State, v T, err error) {
	if f.state != Processing {
		f.mu.Unlock()
		return
	}
	f.state = st
	f.next = nil
	f.canceled = false
	f.stop()
	hooks := f.hooks
	f.mu.Unlock()

	hooks.deliver(f.exec, st, v, err)
}

// Cancel drops any queued restart and signals the run in flight. When the
// future is idle the cancel callback is delivered right away, so owners
// counting cancellations always see one per call.
func (f *ReusableFuture[A, T]) Cancel() {
	f.mu.Lock()
	if f.state == Processing {
		f.next = nil
		f.canceled = true
		f.stop()
		f.mu.Unlock()
		return
	}
	f.state = Canceled
	hooks := f.hooks
	f.mu.Unlock()

	var zero T
	hooks.deliver(f.exec, Canceled, zero, nil)
}
