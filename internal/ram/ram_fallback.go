//go:build !unix

package ram

// mapMemory allocates physical memory on the Go heap when mmap is not
// available.
func mapMemory(size int) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
