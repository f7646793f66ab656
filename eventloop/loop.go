package eventloop

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-crossq"
	"github.com/joeycumines/go-crossq/internal/goid"
)

// Func is a function run on the loop goroutine, see [Loop.Post].
type Func = crossq.Func[*Loop]

// loopTestHooks provides injection points for deterministic race testing.
type loopTestHooks struct {
	PrePollSleep func() // Called after the final pending check, before blocking
}

// Loop is a single goroutine event loop, hosting a [crossq.Queue].
//
// A Loop must be created with [New], and runs once, via [Loop.Run].
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	// State machine (cache-line padded internally)
	state fastState

	// HOOKS: Test hooks for deterministic race testing
	testHooks *loopTestHooks

	logger    *logiface.Logger[logiface.Event]
	queueOpts []crossq.Option

	// attached by Run, on the loop goroutine
	queue atomic.Pointer[crossq.Queue[*Loop]]

	// Wake-up mechanism, closed under wakeMu (write)
	waker       waker
	wakeMu      sync.RWMutex
	wakePending atomic.Uint32

	// signalled asyncs, swapped with signalledBuf each tick
	asyncMu      sync.Mutex
	signalled    []*Async
	signalledBuf []*Async

	// Timers, loop goroutine only
	timers   timerHeap
	timerSeq atomic.Uint64

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	// Loop ID
	id uint64

	started   chan struct{}
	startOnce sync.Once
	loopDone  chan struct{}
	doneOnce  sync.Once
}

var (
	loopIDCounter atomic.Uint64

	_ crossq.Host = (*Loop)(nil)
)

// New creates a new event loop, in [StateAwake].
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	w, err := newWaker()
	if err != nil {
		return nil, fmt.Errorf("eventloop: failed to create wake primitive: %w", err)
	}

	queueOpts := make([]crossq.Option, 0, len(cfg.queueOpts)+1)
	queueOpts = append(queueOpts, crossq.WithLogger(cfg.logger))
	queueOpts = append(queueOpts, cfg.queueOpts...)

	return &Loop{
		id:        loopIDCounter.Add(1),
		logger:    cfg.logger,
		queueOpts: queueOpts,
		waker:     w,
		started:   make(chan struct{}),
		loopDone:  make(chan struct{}),
	}, nil
}

// Run runs the event loop on the calling goroutine, and blocks until it has
// fully stopped. The goroutine is locked to its OS thread, and becomes the
// owner of the loop's queue.
//
// Run returns nil once stopped via [Loop.Shutdown] or [Loop.Close], or the
// context's error, if it was cancelled. An error is also returned if the
// queue could not be attached.
func (l *Loop) Run(ctx context.Context) error {
	if l.IsLoopGoroutine() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// signal completion to Shutdown waiters
	defer l.markDone()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(goid.Current())
	defer l.loopGoroutineID.Store(0)

	q, err := crossq.Init(l, l.queueOpts...)
	if err != nil {
		l.terminate()
		l.logger.Err().
			Uint64("loop_id", l.id).
			Err(err).
			Log("eventloop: failed to attach queue")
		return err
	}
	l.queue.Store(q)
	l.startOnce.Do(func() { close(l.started) })

	l.logger.Debug().
		Uint64("loop_id", l.id).
		Uint64("goroutine", q.OwnerID()).
		Log("eventloop: running")

	// wake the loop on cancellation
	stop := context.AfterFunc(ctx, func() { l.requestStop() })
	defer stop()

	for l.state.Load() != StateTerminating {
		l.tick()
	}

	l.shutdown(q)

	return ctx.Err()
}

// Shutdown requests termination, then waits for the loop to stop, or ctx
// to be cancelled. Entries already queued are run before the loop stops.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.requestStop()
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests termination, without waiting. Returns [ErrLoopTerminated]
// if termination was already requested.
func (l *Loop) Close() error {
	if !l.requestStop() {
		return ErrLoopTerminated
	}
	return nil
}

// Started is closed once [Loop.Run] has attached the queue, or the loop has
// terminated without doing so.
func (l *Loop) Started() <-chan struct{} {
	return l.started
}

// Done is closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Queue returns the attached queue, or nil prior to [Loop.Run].
func (l *Loop) Queue() *crossq.Queue[*Loop] {
	return l.queue.Load()
}

// Post schedules fn to run on the loop goroutine, see [crossq.Queue.Post].
// Returns [ErrLoopNotRunning] prior to [Loop.Run], and
// [crossq.ErrShuttingDown] once the loop has begun to terminate.
func (l *Loop) Post(fn Func, in any) error {
	q := l.queue.Load()
	if q == nil {
		return l.notRunning()
	}
	return q.Post(fn, in)
}

// Call runs fn on the loop goroutine, blocking until it has returned, see
// [crossq.Queue.Call]. It panics if called on the loop goroutine.
func (l *Loop) Call(fn Func, in any, out *any) error {
	q := l.queue.Load()
	if q == nil {
		return l.notRunning()
	}
	return q.Call(fn, in, out)
}

func (l *Loop) notRunning() error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	return ErrLoopNotRunning
}

// GoroutineID implements [crossq.Host].
func (l *Loop) GoroutineID() uint64 {
	return goid.Current()
}

// BindWake implements [crossq.Host], using [Loop.NewAsync].
func (l *Loop) BindWake(callback func()) (crossq.Wake, error) {
	a, err := l.NewAsync(callback)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// IsLoopGoroutine reports whether the caller is running on the loop
// goroutine.
func (l *Loop) IsLoopGoroutine() bool {
	id := l.loopGoroutineID.Load()
	if id == 0 {
		return false
	}
	return goid.Current() == id
}

// tick is a single iteration of the event loop.
func (l *Loop) tick() {
	l.runTimers()
	l.runAsyncs()
	l.poll()
}

// poll blocks until woken, or the next timer is due.
func (l *Loop) poll() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// signals raised since the last runAsyncs will have also written to the
	// waker, but there is no point blocking
	if l.hasSignalled() {
		l.state.TryTransition(StateSleeping, StateRunning)
		return
	}

	timeout := l.calculateTimeout()

	// HOOKS: Call test hook before blocking
	if l.testHooks != nil && l.testHooks.PrePollSleep != nil {
		l.testHooks.PrePollSleep()
	}

	err := l.waker.wait(timeout)
	l.wakePending.Store(0)
	if err != nil {
		l.logger.Err().
			Uint64("loop_id", l.id).
			Err(err).
			Log("eventloop: wait failed, terminating loop")
		l.state.TryTransition(StateSleeping, StateTerminating)
		return
	}

	l.state.TryTransition(StateSleeping, StateRunning)
}

// wakeup writes to the waker, unless a wake is already pending.
func (l *Loop) wakeup() error {
	l.wakeMu.RLock()
	defer l.wakeMu.RUnlock()
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	if !l.wakePending.CompareAndSwap(0, 1) {
		return nil
	}
	if err := l.waker.wake(); err != nil {
		l.wakePending.Store(0)
		return err
	}
	return nil
}

// requestStop transitions to StateTerminating, returning false if already
// terminating or terminated. A loop that never ran is terminated directly.
func (l *Loop) requestStop() bool {
	for {
		current := l.state.Load()
		if current == StateTerminating || current == StateTerminated {
			return false
		}
		if l.state.TryTransition(current, StateTerminating) {
			if current == StateAwake {
				l.terminate()
				l.markDone()
				return true
			}
			_ = l.wakeup()
			return true
		}
	}
}

// shutdown performs the shutdown sequence, on the loop goroutine.
func (l *Loop) shutdown(q *crossq.Queue[*Loop]) {
	// drains every linked entry, then closes the queue's async
	q.Teardown()

	// other handles may have been signalled
	l.runAsyncs()

	dropped := len(l.timers)
	l.timers = nil

	l.terminate()

	l.logger.Info().
		Uint64("loop_id", l.id).
		Int("timers_dropped", dropped).
		Log("eventloop: terminated")
}

// terminate moves to StateTerminated, releasing the waker.
func (l *Loop) terminate() {
	l.wakeMu.Lock()
	defer l.wakeMu.Unlock()
	if l.state.Load() == StateTerminated {
		return
	}
	l.state.Store(StateTerminated)
	if err := l.waker.close(); err != nil {
		l.logger.Warning().
			Uint64("loop_id", l.id).
			Err(err).
			Log("eventloop: failed to close wake primitive")
	}
}

func (l *Loop) markDone() {
	l.startOnce.Do(func() { close(l.started) })
	l.doneOnce.Do(func() { close(l.loopDone) })
}

// safeExecute runs fn with panic recovery. Misuse of the queue is fatal, and
// is not recovered.
func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if m, ok := r.(*crossq.MisuseError); ok {
				panic(m)
			}
			l.logger.Err().
				Uint64("loop_id", l.id).
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Log("eventloop: callback panicked")
		}
	}()
	fn()
}
