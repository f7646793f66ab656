package crossq

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-crossq/internal/goid"
)

var errWakeClosed = errors.New("test wake closed")

// testHost is a manual Host: the goroutine calling Init is the owner, and
// must run the dispatcher explicitly, via pump.
type testHost struct {
	callback  func()
	signalErr atomic.Pointer[error]
	signalled chan struct{}
	bindErr   error
	closeErr  error
	signals   atomic.Int64
	closes    atomic.Int64
	closed    atomic.Bool
}

func newTestHost() *testHost {
	return &testHost{signalled: make(chan struct{}, 1)}
}

func (h *testHost) GoroutineID() uint64 { return goid.Current() }

func (h *testHost) BindWake(callback func()) (Wake, error) {
	if h.bindErr != nil {
		return nil, h.bindErr
	}
	h.callback = callback
	return (*testWake)(h), nil
}

// failSignals makes subsequent signals fail with err, or succeed if nil.
func (h *testHost) failSignals(err error) {
	if err == nil {
		h.signalErr.Store(nil)
		return
	}
	h.signalErr.Store(&err)
}

// pump runs the dispatcher, as the host's loop would.
func (h *testHost) pump() {
	h.callback()
}

// waitSignalled blocks until at least one signal has been received since the
// last call.
func (h *testHost) waitSignalled(t *testing.T) {
	t.Helper()
	select {
	case <-h.signalled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for wake signal")
	}
}

type testWake testHost

func (w *testWake) Signal() error {
	h := (*testHost)(w)
	if h.closed.Load() {
		return errWakeClosed
	}
	if err := h.signalErr.Load(); err != nil {
		return *err
	}
	h.signals.Add(1)
	select {
	case h.signalled <- struct{}{}:
	default:
	}
	return nil
}

func (w *testWake) Close() error {
	h := (*testHost)(w)
	h.closes.Add(1)
	h.closed.Store(true)
	return h.closeErr
}

func newTestQueue(t *testing.T, opts ...Option) (*Queue[*testHost], *testHost) {
	t.Helper()
	h := newTestHost()
	q, err := Init(h, opts...)
	require.NoError(t, err)
	return q, h
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestLogger returns a debug level JSON logger writing to the returned
// buffer.
func newTestLogger() (*logiface.Logger[logiface.Event], *syncBuffer) {
	var buf syncBuffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)
	return logger.Logger(), &buf
}

// incr returns a Func incrementing n, which must only be read on the owner
// goroutine.
func incr(n *int) Func[*testHost] {
	return func(*testHost, any, *any) { *n++ }
}
