//go:build unix && !linux

package eventloop

import (
	"golang.org/x/sys/unix"
)

// newWaker creates a self-pipe for wake-up notifications (non-Linux unix).
func newWaker() (waker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}

	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return nil, err
	}

	return &fdWaker{readFD: fds[0], writeFD: fds[1], token: []byte{1}}, nil
}
