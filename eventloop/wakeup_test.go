package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaker_wakeBeforeWait(t *testing.T) {
	w, err := newWaker()
	require.NoError(t, err)
	defer w.close()

	require.NoError(t, w.wake())
	require.NoError(t, w.wake())

	start := time.Now()
	require.NoError(t, w.wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	// both wakes were consumed
	start = time.Now()
	require.NoError(t, w.wait(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaker_wakeDuringWait(t *testing.T) {
	w, err := newWaker()
	require.NoError(t, err)
	defer w.close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = w.wake()
	}()
	start := time.Now()
	require.NoError(t, w.wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaker_zeroTimeout(t *testing.T) {
	w, err := newWaker()
	require.NoError(t, err)
	defer w.close()
	require.NoError(t, w.wait(0))
}
