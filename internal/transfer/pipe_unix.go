//go:build linux || freebsd || openbsd || netbsd || dragonfly

package transfer

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Swapped out in tests.
var (
	pipe = func() (r, w int, err error) {
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
			return -1, -1, err
		}
		return p[0], p[1], nil
	}
	closeFD = unix.Close
	readFD  = unix.Read
)

func isInterrupted(err error) bool { return errors.Is(err, unix.EINTR) }
