package crossq

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of a Queue's counters.
type Stats struct {
	// Posted is the number of successful [Queue.Post] calls.
	Posted uint64
	// Called is the number of successful [Queue.Call] calls.
	Called uint64
	// Dispatched is the number of entries executed by the dispatcher.
	Dispatched uint64
	// Panics is the number of dispatched functions that panicked.
	Panics uint64
	// RejectedShutdown counts enqueue attempts rejected with [ErrShuttingDown].
	RejectedShutdown uint64
	// RejectedSignal counts enqueue attempts rejected with [ErrSignalUnavailable].
	RejectedSignal uint64
	// RejectedAlloc counts enqueue attempts rejected with [ErrOutOfMemory].
	RejectedAlloc uint64
	// Depth is the number of entries pending, at the time of the snapshot.
	Depth int
	// MaxDepth is the highest observed Depth.
	MaxDepth int
}

// queueCounters are updated without holding the queue lock.
type queueCounters struct {
	posted           atomic.Uint64
	called           atomic.Uint64
	dispatched       atomic.Uint64
	panics           atomic.Uint64
	rejectedShutdown atomic.Uint64
	rejectedSignal   atomic.Uint64
	rejectedAlloc    atomic.Uint64
}

// Stats returns a snapshot of the queue's counters. Safe to call from any
// goroutine.
func (q *Queue[H]) Stats() Stats {
	s := Stats{
		Posted:           q.counters.posted.Load(),
		Called:           q.counters.called.Load(),
		Dispatched:       q.counters.dispatched.Load(),
		Panics:           q.counters.panics.Load(),
		RejectedShutdown: q.counters.rejectedShutdown.Load(),
		RejectedSignal:   q.counters.rejectedSignal.Load(),
		RejectedAlloc:    q.counters.rejectedAlloc.Load(),
	}
	q.mu.Lock()
	s.Depth = q.pending.len()
	s.MaxDepth = q.maxDepth
	q.mu.Unlock()
	return s
}
