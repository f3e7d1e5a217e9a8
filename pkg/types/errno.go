package types

import "fmt"

// Errno is a kernel error number. Package errors in this module wrap an
// Errno so callers can classify failures with errors.Is.
type Errno int

// Error numbers, matching the kernel's <kern/errno.h>.
const (
	EUNIMP Errno = 2  // Unimplemented feature
	ENOMEM Errno = 3  // Out of memory
	EFAULT Errno = 6  // Bad memory reference
	EINVAL Errno = 8  // Invalid argument
	EACCES Errno = 10 // Permission denied
)

var errnoText = map[Errno]string{
	ENOMEM: "out of memory",
	EFAULT: "bad memory reference",
	EINVAL: "invalid argument",
	EUNIMP: "unimplemented feature",
	EACCES: "permission denied",
}

func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}
