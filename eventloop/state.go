package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
//	StateAwake → StateRunning             [Run()]
//	StateAwake → StateTerminated          [Shutdown()/Close() before Run()]
//	StateRunning ⇄ StateSleeping          [poll, via CAS]
//	StateRunning/Sleeping → StateTerminating [Shutdown()/Close()/ctx]
//	StateTerminating → StateTerminated    [queue torn down]
//
// Running and Sleeping must only be entered via CAS.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateRunning indicates the loop is processing timers and callbacks.
	StateRunning
	// StateSleeping indicates the loop is blocked waiting for a wake signal.
	StateSleeping
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating
	// StateTerminated indicates the loop has stopped, and released its wake
	// primitive.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine, padded to its own cache line.
type fastState struct { // betteralign:ignore
	_ [64]byte //nolint:unused
	v atomic.Uint64
	_ [56]byte //nolint:unused
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store is only valid for irreversible states.
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
