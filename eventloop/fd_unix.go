//go:build unix

package eventloop

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// fdWaker is a waker backed by a readable file descriptor, either an eventfd
// (one fd) or a self-pipe (read and write ends).
type fdWaker struct {
	readFD  int
	writeFD int
	token   []byte
}

func (w *fdWaker) wake() error {
	_, err := unix.Write(w.writeFD, w.token)
	if errors.Is(err, unix.EAGAIN) {
		// counter or pipe buffer is full, so a wake is already pending
		return nil
	}
	return err
}

func (w *fdWaker) wait(timeout time.Duration) error {
	fds := [1]unix.PollFd{{Fd: int32(w.readFD), Events: unix.POLLIN}}
	if _, err := unix.Poll(fds[:], pollTimeoutMillis(timeout)); err != nil && !errors.Is(err, unix.EINTR) {
		return err
	}
	w.drain()
	return nil
}

// drain consumes every pending wake token, without blocking.
func (w *fdWaker) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.readFD, buf[:])
		if err != nil || n <= 0 {
			return
		}
	}
}

func (w *fdWaker) close() error {
	err := unix.Close(w.readFD)
	if w.writeFD != w.readFD {
		if err2 := unix.Close(w.writeFD); err == nil {
			err = err2
		}
	}
	return err
}

// pollTimeoutMillis rounds timeout up to the nearest millisecond, such that
// a timer is never run early.
func pollTimeoutMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}
