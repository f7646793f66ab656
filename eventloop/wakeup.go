package eventloop

import (
	"time"
)

// maxPollDelay caps how long the loop blocks without a timer deadline.
const maxPollDelay = 10 * time.Second

// waker is the loop's wake primitive. Only wake is called off the loop
// goroutine.
type waker interface {
	// wake makes a pending or subsequent wait return. It must not block.
	wake() error

	// wait blocks until woken, or timeout elapses, consuming any pending
	// wake.
	wait(timeout time.Duration) error

	close() error
}
