package eventloop

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// startLoop runs a new loop in the background, shutting it down (and
// checking Run's result) on cleanup.
func startLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)
	runLoop(t, loop)
	return loop
}

func runLoop(t *testing.T, loop *Loop) {
	t.Helper()
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(context.Background()) }()
	select {
	case <-loop.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, loop.Shutdown(ctx))
		require.NoError(t, <-runErr)
	})
}

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

func newTestLogger() (*logiface.Logger[logiface.Event], *syncBuffer) {
	var buf syncBuffer
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger(), &buf
}
