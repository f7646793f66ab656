package crossq

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrOutOfMemory is returned by [Queue.Post] when no entry could be
	// allocated, see [WithMaxPosted].
	ErrOutOfMemory = errors.New("crossq: out of memory")

	// ErrShuttingDown is returned by [Queue.Post] and [Queue.Call] once
	// [Queue.Teardown] has started. It is permanent for the queue.
	ErrShuttingDown = errors.New("crossq: queue is shutting down")

	// ErrSignalUnavailable is returned when the wake signal could not be
	// triggered. The underlying [Wake] error is also wrapped.
	ErrSignalUnavailable = errors.New("crossq: wake signal unavailable")

	// ErrMisuse is matched (via [errors.Is]) by every [MisuseError].
	ErrMisuse = errors.New("crossq: misuse")
)

// MisuseError is the panic value raised when the queue is used in a way that
// can only be a programming error, e.g. a blocking [Queue.Call] from the
// owner goroutine, which would otherwise deadlock.
type MisuseError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *MisuseError) Error() string {
	return "crossq: " + e.Op + ": " + e.Reason
}

// Is reports whether target is [ErrMisuse].
func (e *MisuseError) Is(target error) bool {
	return target == ErrMisuse
}

func misuse(op, reason string) {
	panic(&MisuseError{Op: op, Reason: reason})
}

// PanicError is returned by [Queue.Call] when the dispatched function
// panicked. The panic is recovered on the owner goroutine, so the event loop
// keeps running.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
	// Stack is the owner goroutine's stack at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("crossq: dispatched function panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// signalFailed wraps a failure of [Wake.Signal], such that both it and
// [ErrSignalUnavailable] match via [errors.Is].
func signalFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrSignalUnavailable, err)
}
