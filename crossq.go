package crossq

import (
	"errors"
	"reflect"
	"sync"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

type (
	// Host is the event loop a [Queue] is attached to. The goroutine that
	// calls [Init] becomes the queue's owner, and the host must run every
	// wake callback on that goroutine.
	Host interface {
		// GoroutineID identifies the calling goroutine. It must be non-zero
		// and stable for the lifetime of the goroutine.
		GoroutineID() uint64

		// BindWake registers callback, which the host must run on the owner
		// goroutine at least once after every successful [Wake.Signal].
		BindWake(callback func()) (Wake, error)
	}

	// Wake is a wake signal, bound to a [Host] by [Host.BindWake].
	Wake interface {
		// Signal is safe to call from any goroutine, and must not run the
		// callback synchronously. Failure indicates the owner goroutine
		// cannot currently be notified, e.g. it is saturated or gone.
		Signal() error

		// Close unbinds the callback. It is called on the owner goroutine,
		// and the callback must not run after it returns.
		Close() error
	}

	// Func is a function executed on the owner goroutine. The in value is
	// passed through untouched. For [Queue.Call], out is the caller's output
	// slot, which fn may write. For [Queue.Post], out is nil.
	Func[H Host] func(host H, in any, out *any)

	// Queue is a cross-goroutine call queue. Any goroutine may schedule a
	// [Func] to run on the owner goroutine, either without waiting
	// ([Queue.Post]) or blocking until it has run ([Queue.Call]).
	//
	// The owner goroutine never blocks on a foreign goroutine: the queue lock
	// is only ever held for O(1) list operations, and is released while each
	// function runs.
	Queue[H Host] struct {
		// Prevent copying
		_ [0]func()

		host    H
		wake    Wake
		logger  *logiface.Logger[logiface.Event]
		limiter *catrate.Limiter
		hooks   *queueTestHooks

		entries entryAllocator[H]

		counters queueCounters

		// guards pending, flags and maxDepth
		mu       sync.Mutex
		pending  fifo[*entry[H]]
		maxDepth int
		flags    queueFlags

		owner uint64
	}

	queueFlags uint8

	// queueTestHooks provides injection points for deterministic testing.
	queueTestHooks struct {
		// OnRelease is called with each posted entry, as it is handed back
		// to the allocator.
		OnRelease func(e any)
		// PreLink is called with each entry, with the queue lock held,
		// immediately before it is linked.
		PreLink func(e any)
	}
)

const (
	flagActive queueFlags = 1 << iota
	flagShuttingDown
)

// Init attaches a new Queue to host, recording the calling goroutine as the
// owner. It must be called on the goroutine that runs the host's loop.
//
// An error is returned if host is nil (including a typed nil pointer), an
// option is invalid, or if the wake signal could not be bound, in which case
// it will match [ErrSignalUnavailable].
func Init[H Host](host H, opts ...Option) (*Queue[H], error) {
	if isNil(host) {
		return nil, errors.New("crossq: nil host")
	}

	cfg, err := resolveQueueOptions(opts)
	if err != nil {
		return nil, err
	}

	q := &Queue[H]{
		host:    host,
		logger:  cfg.logger,
		limiter: cfg.limiter,
		hooks:   cfg.hooks,
		pending: newFIFO[*entry[H]](),
		owner:   host.GoroutineID(),
	}
	if q.owner == 0 {
		return nil, errors.New("crossq: host returned no goroutine id")
	}
	q.entries.init(cfg.maxPosted, cfg.hooks)

	wake, err := host.BindWake(q.onWake)
	if err != nil {
		return nil, signalFailed(err)
	}
	q.wake = wake
	q.flags = flagActive

	q.logger.Debug().
		Uint64("owner", q.owner).
		Int64("max_posted", cfg.maxPosted).
		Log("crossq: queue initialized")

	return q, nil
}

// isNil reports whether v is nil, including a typed nil pointer (or other
// nillable kind) stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Teardown stops the queue. It must be called once, on the owner goroutine.
//
// Every entry linked before teardown began is dispatched before Teardown
// returns. Functions dispatched during teardown may not enqueue further
// work: [Queue.Post] and [Queue.Call] fail with [ErrShuttingDown] from the
// moment teardown begins. The wake signal is released last, after the final
// drain.
func (q *Queue[H]) Teardown() {
	if q == nil {
		misuse("teardown", "nil queue")
	}
	if q.host.GoroutineID() != q.owner {
		misuse("teardown", "not on the owner goroutine")
	}

	q.mu.Lock()
	if q.flags != flagActive {
		q.mu.Unlock()
		misuse("teardown", "queue is not active")
	}
	q.flags |= flagShuttingDown
	n := q.drainLocked()
	if q.pending.len() != 0 {
		q.mu.Unlock()
		misuse("teardown", "entries remain after the final drain")
	}
	q.flags &^= flagActive
	q.mu.Unlock()

	if err := q.wake.Close(); err != nil {
		q.logger.Warning().
			Uint64("owner", q.owner).
			Err(err).
			Log("crossq: failed to release wake signal")
	}

	q.logger.Debug().
		Uint64("owner", q.owner).
		Int("drained", n).
		Log("crossq: queue torn down")
}

// OwnerID returns the id of the owner goroutine.
func (q *Queue[H]) OwnerID() uint64 {
	return q.owner
}

// Len returns the number of entries pending dispatch.
func (q *Queue[H]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.len()
}

// onWake is the dispatcher, run by the host after a wake signal.
func (q *Queue[H]) onWake() {
	if q.host.GoroutineID() != q.owner {
		misuse("dispatch", "not on the owner goroutine")
	}
	q.mu.Lock()
	if q.flags&flagActive == 0 {
		q.mu.Unlock()
		misuse("dispatch", "queue is not active")
	}
	q.drainLocked()
	q.mu.Unlock()
}

// drainLocked dispatches entries until the queue is empty, returning the
// number dispatched. The caller must hold q.mu, which is released around
// each dispatch, so functions may enqueue further work.
func (q *Queue[H]) drainLocked() (n int) {
	for {
		e, ok := q.pending.pop()
		if !ok {
			return n
		}
		q.mu.Unlock()
		q.dispatch(e)
		q.mu.Lock()
		n++
	}
}

// dispatch runs a single entry, then either releases it (posted) or
// completes it, waking the caller (call).
func (q *Queue[H]) dispatch(e *entry[H]) {
	mode := e.mode
	if mode != modePosted && mode != modeCall {
		misuse("dispatch", "entry was already released")
	}

	perr := q.invoke(e)
	q.counters.dispatched.Add(1)

	if mode == modePosted {
		if perr != nil {
			q.logPanic(perr)
		}
		q.entries.free(e)
		return
	}

	// the caller owns e, and may reuse it as soon as complete is observed
	e.mu.Lock()
	e.panicked = perr
	e.complete = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// invoke runs the entry's function, recovering any panic other than a
// MisuseError, which is fatal.
func (q *Queue[H]) invoke(e *entry[H]) (perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			if m, ok := r.(*MisuseError); ok {
				panic(m)
			}
			q.counters.panics.Add(1)
			perr = newPanicError(r)
		}
	}()
	e.fn(q.host, e.in, e.out)
	return nil
}

// link appends e to pending. The caller must hold q.mu.
func (q *Queue[H]) link(e *entry[H]) {
	if q.hooks != nil && q.hooks.PreLink != nil {
		q.hooks.PreLink(e)
	}
	q.pending.push(e)
	if n := q.pending.len(); n > q.maxDepth {
		q.maxDepth = n
	}
}
