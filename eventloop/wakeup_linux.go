//go:build linux

package eventloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// newWaker creates an eventfd for wake-up notifications (Linux), used as
// both the read and write end.
func newWaker() (waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	token := make([]byte, 8)
	binary.NativeEndian.PutUint64(token, 1)
	return &fdWaker{readFD: fd, writeFD: fd, token: token}, nil
}
