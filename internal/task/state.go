package task

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a future.
type State int32

const (
	Pending State = iota
	Processing
	Success
	Error
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Error:
		return "error"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is Success, Error or Canceled.
func (s State) Terminal() bool {
	return s == Success || s == Error || s == Canceled
}

var (
	// ErrNotPending is returned by Future.Process unless the future is Pending.
	ErrNotPending = errors.New("task: future is not pending")
	// ErrCanceled is the error work should return after observing its token.
	ErrCanceled = errors.New("task: canceled")
)

// PanicError carries a value recovered from a panicking work function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task: work panicked: %v", e.Value)
}

// Thread selects where callbacks run.
type Thread int

const (
	// OnExecutor marshals callbacks onto the executor queue.
	OnExecutor Thread = iota
	// OnWorker runs callbacks on the worker goroutine that finished the work.
	OnWorker
)
