package wayland

import "golang.org/x/sys/unix"

func pipeForTest() (r, w int, err error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return -1, -1, err
	}
	return p[0], p[1], nil
}

func closeForTest(fd int) { _ = unix.Close(fd) }
