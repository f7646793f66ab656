package eventloop

import (
	"errors"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrLoopNotRunning is returned by Post and Call before Run has attached the queue.
	ErrLoopNotRunning = errors.New("eventloop: loop is not running")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("eventloop: cannot call Run() from within the loop")

	// ErrAsyncClosed is returned by Async methods, after Close.
	ErrAsyncClosed = errors.New("eventloop: async handle is closed")
)
