package coremap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

var (
	// ErrNoMemory indicates no free run of the requested length exists.
	// It is recoverable; the allocator never retries.
	ErrNoMemory = fmt.Errorf("coremap: no free run: %w", types.ENOMEM)

	// ErrBadCount indicates a request for fewer than one page.
	ErrBadCount = fmt.Errorf("coremap: page count must be at least 1: %w", types.EINVAL)

	// ErrBadFree indicates a free of an address that does not start a live run.
	ErrBadFree = fmt.Errorf("coremap: address does not start an allocated run: %w", types.EINVAL)

	// ErrAlreadyBootstrapped indicates a second call to Bootstrap.
	ErrAlreadyBootstrapped = errors.New("coremap: already bootstrapped")

	// errHandedOff is returned by steal once Bootstrap has taken the
	// remaining memory.
	errHandedOff = errors.New("coremap: memory handed off to the frame table")
)
