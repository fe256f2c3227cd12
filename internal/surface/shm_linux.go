//go:build linux

package surface

import "golang.org/x/sys/unix"

func sharedMemory(size int) (int, error) {
	fd, err := unix.MemfdCreate("superclip-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return -1, err
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
