package crossq

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ownershipTracker records every linked entry, and every released one.
type ownershipTracker struct {
	linked   map[any]entryMode
	released map[any]int
	mu       sync.Mutex
}

func newOwnershipTracker() *ownershipTracker {
	return &ownershipTracker{linked: make(map[any]entryMode), released: make(map[any]int)}
}

func (x *ownershipTracker) hooks() *queueTestHooks {
	return &queueTestHooks{
		PreLink: func(e any) {
			x.mu.Lock()
			x.linked[e] = e.(*entry[*testHost]).mode
			x.mu.Unlock()
		},
		OnRelease: func(e any) {
			x.mu.Lock()
			x.released[e]++
			x.mu.Unlock()
		},
	}
}

func TestEntry_postedReleasedOnceCallNever(t *testing.T) {
	tracker := newOwnershipTracker()
	q, h := newTestQueue(t, withTestHooks(tracker.hooks()))

	var counter int
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Post(incr(&counter), nil))
	}
	h.pump()

	done := make(chan error)
	go func() {
		var out any
		done <- q.Call(func(_ *testHost, _ any, out *any) { *out = 1 }, nil, &out)
	}()
	h.waitSignalled(t)
	require.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, time.Millisecond)
	h.pump()
	require.NoError(t, <-done)

	require.Equal(t, 3, counter)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	require.Len(t, tracker.linked, 4)
	var posted, called int
	for e, mode := range tracker.linked {
		switch mode {
		case modePosted:
			posted++
			assert.Equal(t, 1, tracker.released[e])
		case modeCall:
			called++
			assert.Zero(t, tracker.released[e])
			// completed, and still intact for the caller
			ce := e.(*entry[*testHost])
			assert.True(t, ce.complete)
			assert.Equal(t, modeCall, ce.mode)
		default:
			t.Errorf("unexpected mode %d", mode)
		}
	}
	assert.Equal(t, 3, posted)
	assert.Equal(t, 1, called)
}

func TestEntry_releasedEntryIsPoisoned(t *testing.T) {
	var a entryAllocator[*testHost]
	a.init(0, nil)
	e, ok := a.alloc()
	require.True(t, ok)
	e.init(modePosted, func(*testHost, any, *any) {}, "in", nil)
	a.free(e)

	assert.Equal(t, modeReleased, e.mode)
	assert.Nil(t, e.fn)
	assert.Nil(t, e.in)

	q, _ := newTestQueue(t)
	assert.PanicsWithError(t, "crossq: dispatch: entry was already released", func() { q.dispatch(e) })
}

func TestEntryAllocator_bounded(t *testing.T) {
	var a entryAllocator[*testHost]
	a.init(2, nil)
	e1, ok := a.alloc()
	require.True(t, ok)
	_, ok = a.alloc()
	require.True(t, ok)
	_, ok = a.alloc()
	require.False(t, ok)
	a.free(e1)
	_, ok = a.alloc()
	assert.True(t, ok)
}

func TestQueue_Post_outOfMemory(t *testing.T) {
	q, h := newTestQueue(t, WithMaxPosted(2))
	var counter int

	require.NoError(t, q.Post(incr(&counter), nil))
	require.NoError(t, q.Post(incr(&counter), nil))
	assert.ErrorIs(t, q.Post(incr(&counter), nil), ErrOutOfMemory)
	assert.Equal(t, 2, q.Len())

	h.pump()
	assert.Equal(t, 2, counter)
	require.NoError(t, q.Post(incr(&counter), nil))

	// calls are never bounded, the caller owns the entry
	done := make(chan error)
	go func() { done <- q.Call(incr(&counter), nil, nil) }()
	h.waitSignalled(t)
	require.Eventually(t, func() bool { return q.Len() == 3 }, 5*time.Second, time.Millisecond)
	h.pump()
	require.NoError(t, <-done)
	assert.Equal(t, 4, counter)

	assert.Equal(t, uint64(1), q.Stats().RejectedAlloc)
}

func TestQueue_Post_shutdownReleasesEntry(t *testing.T) {
	tracker := newOwnershipTracker()
	q, _ := newTestQueue(t, withTestHooks(tracker.hooks()), WithMaxPosted(1))
	q.Teardown()

	assert.ErrorIs(t, q.Post(func(*testHost, any, *any) {}, nil), ErrShuttingDown)
	// the bound was restored
	assert.ErrorIs(t, q.Post(func(*testHost, any, *any) {}, nil), ErrShuttingDown)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	var releases int
	for _, n := range tracker.released {
		releases += n
	}
	assert.Equal(t, 2, releases)
	assert.Empty(t, tracker.linked)
}

func TestQueue_signalFailure(t *testing.T) {
	tracker := newOwnershipTracker()
	q, h := newTestQueue(t, withTestHooks(tracker.hooks()))
	signalErr := errors.New("wake channel saturated")
	h.failSignals(signalErr)

	var ran bool
	err := q.Post(func(*testHost, any, *any) { ran = true }, nil)
	assert.ErrorIs(t, err, ErrSignalUnavailable)
	assert.ErrorIs(t, err, signalErr)

	out := any("untouched")
	done := make(chan error)
	go func() {
		done <- q.Call(func(_ *testHost, _ any, out *any) { *out = "touched" }, nil, &out)
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSignalUnavailable)
		assert.ErrorIs(t, err, signalErr)
	case <-time.After(5 * time.Second):
		t.Fatal("call blocked despite signal failure")
	}

	assert.Zero(t, q.Len())
	h.pump()
	assert.False(t, ran)
	assert.Equal(t, "untouched", out)

	tracker.mu.Lock()
	assert.Empty(t, tracker.linked)
	assert.Len(t, tracker.released, 1)
	tracker.mu.Unlock()

	assert.Equal(t, uint64(2), q.Stats().RejectedSignal)

	// recovers once the host can be signalled again
	h.failSignals(nil)
	require.NoError(t, q.Post(func(*testHost, any, *any) { ran = true }, nil))
	h.pump()
	assert.True(t, ran)
}

func TestQueue_signalFailureLogsRateLimited(t *testing.T) {
	logger, buf := newTestLogger()
	q, h := newTestQueue(t,
		WithLogger(logger),
		WithLogRateLimits(map[time.Duration]int{time.Hour: 1}),
	)
	h.failSignals(errors.New("saturated"))

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, q.Post(func(*testHost, any, *any) {}, nil), ErrSignalUnavailable)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"crossq: post rejected: wake signal failed"`))
	assert.Contains(t, buf.String(), `"lvl":"warning"`)
	assert.Contains(t, buf.String(), `"err":"saturated"`)
}

func TestQueue_Call_panicReturnsPanicError(t *testing.T) {
	q, h := newTestQueue(t)
	cause := errors.New("boom")

	done := make(chan error)
	out := any(nil)
	go func() {
		done <- q.Call(func(_ *testHost, _ any, out *any) {
			*out = "partial"
			panic(cause)
		}, nil, &out)
	}()
	h.waitSignalled(t)
	require.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, time.Millisecond)
	h.pump()

	err := <-done
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, cause, perr.Value)
	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, perr.Stack)
	assert.Equal(t, "partial", out)
	assert.Equal(t, uint64(1), q.Stats().Panics)
}

func TestQueue_Post_panicLoggedAndDrainContinues(t *testing.T) {
	logger, buf := newTestLogger()
	q, h := newTestQueue(t, WithLogger(logger))

	var counter int
	require.NoError(t, q.Post(func(*testHost, any, *any) { panic("posted panic") }, nil))
	require.NoError(t, q.Post(incr(&counter), nil))

	h.pump()
	assert.Equal(t, 1, counter)
	assert.Contains(t, buf.String(), `"msg":"crossq: posted function panicked"`)
	assert.Contains(t, buf.String(), `"panic":"posted panic"`)
	assert.Equal(t, uint64(1), q.Stats().Panics)
}

func TestQueue_misusePanicIsNotRecovered(t *testing.T) {
	q, h := newTestQueue(t)
	require.NoError(t, q.Post(func(*testHost, any, *any) {
		misuse("test", "fatal")
	}, nil))
	assert.PanicsWithError(t, "crossq: test: fatal", h.pump)
}
