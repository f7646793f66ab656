package eventloop

import (
	"errors"
	"sync/atomic"

	"github.com/joeycumines/go-crossq"
)

// Async is a wake handle, the callback of which runs on the loop goroutine
// after being signalled. Signals are coalesced: the callback runs at least
// once after each successful [Async.Signal], but possibly once for many.
type Async struct {
	loop     *Loop
	callback func()
	pending  atomic.Bool
	closed   atomic.Bool
}

var _ crossq.Wake = (*Async)(nil)

// NewAsync registers callback with the loop. It may be called from any
// goroutine, before or during [Loop.Run].
func (l *Loop) NewAsync(callback func()) (*Async, error) {
	if callback == nil {
		return nil, errors.New("eventloop: nil async callback")
	}
	if l.state.Load() == StateTerminated {
		return nil, ErrLoopTerminated
	}
	return &Async{loop: l, callback: callback}, nil
}

// Signal schedules the callback. It is safe to call from any goroutine, and
// never runs the callback synchronously.
func (a *Async) Signal() error {
	if a.closed.Load() {
		return ErrAsyncClosed
	}
	l := a.loop
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	if a.pending.CompareAndSwap(false, true) {
		l.asyncMu.Lock()
		l.signalled = append(l.signalled, a)
		l.asyncMu.Unlock()
	}
	return l.wakeup()
}

// Close unbinds the callback. Once Close has returned on the loop goroutine,
// the callback will not run again.
func (a *Async) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return ErrAsyncClosed
	}
	return nil
}

// runAsyncs runs the callback of every signalled handle.
func (l *Loop) runAsyncs() {
	l.asyncMu.Lock()
	batch := l.signalled
	l.signalled = l.signalledBuf[:0]
	l.asyncMu.Unlock()

	for i, a := range batch {
		batch[i] = nil
		// cleared first, so signals raised by the callback are not lost
		a.pending.Store(false)
		if a.closed.Load() {
			continue
		}
		l.safeExecute(a.callback)
	}

	l.signalledBuf = batch[:0]
}

func (l *Loop) hasSignalled() bool {
	l.asyncMu.Lock()
	defer l.asyncMu.Unlock()
	return len(l.signalled) != 0
}
