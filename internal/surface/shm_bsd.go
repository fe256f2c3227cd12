//go:build freebsd || openbsd || netbsd || dragonfly

package surface

import (
	"os"

	"golang.org/x/sys/unix"
)

// sharedMemory falls back to an unlinked temporary file.
func sharedMemory(size int) (int, error) {
	f, err := os.CreateTemp(os.Getenv("XDG_RUNTIME_DIR"), "superclip-shm-*")
	if err != nil {
		return -1, err
	}
	defer f.Close()
	_ = os.Remove(f.Name())
	if err := f.Truncate(int64(size)); err != nil {
		return -1, err
	}
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}
