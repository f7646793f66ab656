package crossq

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

type entryMode uint8

const (
	// modeReleased is the zero value, and marks an entry that has been
	// handed back to the allocator.
	modeReleased entryMode = iota
	// modePosted entries are owned by the queue, from Post until the
	// dispatcher releases them.
	modePosted
	// modeCall entries are owned by the calling goroutine, for the whole of
	// Call. The queue only ever links to them.
	modeCall
)

// entry is a single request to run a Func on the owner goroutine.
//
// The completion fields (mu, cond, complete, panicked) are only used for
// modeCall, and are shared between exactly two parties, the dispatcher and
// the waiting caller.
type entry[H Host] struct {
	cond     sync.Cond
	fn       Func[H]
	in       any
	out      *any
	panicked *PanicError
	mu       sync.Mutex
	mode     entryMode
	complete bool
}

func (e *entry[H]) init(mode entryMode, fn Func[H], in any, out *any) {
	e.cond.L = &e.mu
	e.fn = fn
	e.in = in
	e.out = out
	e.panicked = nil
	e.mode = mode
	e.complete = false
}

// entryAllocator provides posted entries, optionally bounded.
type entryAllocator[H Host] struct {
	pool  sync.Pool
	limit *semaphore.Weighted
	hooks *queueTestHooks
}

func (a *entryAllocator[H]) init(max int64, hooks *queueTestHooks) {
	a.pool.New = func() any { return new(entry[H]) }
	if max > 0 {
		a.limit = semaphore.NewWeighted(max)
	}
	a.hooks = hooks
}

// alloc returns false if the bound has been reached.
func (a *entryAllocator[H]) alloc() (*entry[H], bool) {
	if a.limit != nil && !a.limit.TryAcquire(1) {
		return nil, false
	}
	return a.pool.Get().(*entry[H]), true
}

// free releases a posted entry. It must not be referenced afterward.
func (a *entryAllocator[H]) free(e *entry[H]) {
	if a.hooks != nil && a.hooks.OnRelease != nil {
		a.hooks.OnRelease(e)
	}
	e.fn = nil
	e.in = nil
	e.out = nil
	e.panicked = nil
	e.mode = modeReleased
	e.complete = false
	a.pool.Put(e)
	if a.limit != nil {
		a.limit.Release(1)
	}
}

// Post schedules fn to run on the owner goroutine, and returns immediately.
// It is safe to call from any goroutine, including the owner (e.g. from
// within a dispatched function).
//
// A nil error guarantees fn will run, once, in FIFO order relative to all
// other entries linked to this queue. Errors are [ErrOutOfMemory],
// [ErrShuttingDown], or [ErrSignalUnavailable], in which case fn will not
// run.
func (q *Queue[H]) Post(fn Func[H], in any) error {
	if q == nil {
		misuse("post", "nil queue")
	}
	if fn == nil {
		misuse("post", "nil function")
	}

	e, ok := q.entries.alloc()
	if !ok {
		q.counters.rejectedAlloc.Add(1)
		return ErrOutOfMemory
	}
	e.init(modePosted, fn, in, nil)

	q.mu.Lock()
	if q.flags&flagShuttingDown != 0 {
		q.mu.Unlock()
		q.entries.free(e)
		q.counters.rejectedShutdown.Add(1)
		return ErrShuttingDown
	}
	// signal before linking, so a failure never leaves an orphaned entry
	if err := q.wake.Signal(); err != nil {
		q.mu.Unlock()
		q.entries.free(e)
		q.counters.rejectedSignal.Add(1)
		q.warnLimited(logCategorySignal, err, "crossq: post rejected: wake signal failed")
		return signalFailed(err)
	}
	q.link(e)
	q.mu.Unlock()
	// e now belongs to the dispatcher, and may already have been released

	q.counters.posted.Add(1)

	// covers a drain that observed the queue as empty, while e was being
	// linked
	if err := q.wake.Signal(); err != nil {
		q.warnLimited(logCategoryResignal, err, "crossq: post re-signal failed")
	}

	return nil
}

// Call runs fn on the owner goroutine, blocking until it has returned.
// Anything fn writes to out is visible to the caller once Call returns.
//
// Call must not be used from the owner goroutine, which would deadlock: it
// panics with a [MisuseError] instead. There is no timeout or cancellation,
// Call waits until the dispatcher has run fn.
//
// Errors are [ErrShuttingDown] or [ErrSignalUnavailable], in which case fn
// was not run and out is untouched, or a [*PanicError], if fn panicked.
func (q *Queue[H]) Call(fn Func[H], in any, out *any) error {
	if q == nil {
		misuse("call", "nil queue")
	}
	if fn == nil {
		misuse("call", "nil function")
	}
	if q.host.GoroutineID() == q.owner {
		misuse("call", "called from the owner goroutine, which would deadlock")
	}

	// owned by this frame for the whole call, never released to the allocator
	var e entry[H]
	e.init(modeCall, fn, in, out)

	q.mu.Lock()
	if q.flags&flagShuttingDown != 0 {
		q.mu.Unlock()
		q.counters.rejectedShutdown.Add(1)
		return ErrShuttingDown
	}
	if err := q.wake.Signal(); err != nil {
		q.mu.Unlock()
		q.counters.rejectedSignal.Add(1)
		q.warnLimited(logCategorySignal, err, "crossq: call rejected: wake signal failed")
		return signalFailed(err)
	}
	q.link(&e)
	q.mu.Unlock()

	q.counters.called.Add(1)

	e.mu.Lock()
	for !e.complete {
		e.cond.Wait()
	}
	e.mu.Unlock()

	if e.panicked != nil {
		return e.panicked
	}
	return nil
}
