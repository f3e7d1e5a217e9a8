//go:build unix

package ram

import (
	"errors"

	"golang.org/x/sys/unix"
)

// mapMemory backs physical memory with an anonymous private mapping so the
// simulated machine's RAM lives outside the Go heap.
func mapMemory(size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	release := func() error {
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return data, release, nil
}
