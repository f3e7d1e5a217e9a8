package addrspace

import (
	"errors"
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

var (
	// ErrTooManyRegions indicates a region beyond the configured limit.
	ErrTooManyRegions = fmt.Errorf("addrspace: too many regions: %w", types.EUNIMP)

	// ErrOverlap indicates a region overlapping another region or the stack.
	ErrOverlap = fmt.Errorf("addrspace: region overlaps an existing region: %w", types.EINVAL)

	// ErrBadRange indicates a region that is empty or reaches past user space.
	ErrBadRange = fmt.Errorf("addrspace: region outside user space: %w", types.EFAULT)

	// ErrAlreadyPrepared indicates a region defined after PrepareLoad.
	ErrAlreadyPrepared = fmt.Errorf("addrspace: load already prepared: %w", types.EINVAL)

	// ErrNotPrepared indicates an operation that needs frames PrepareLoad
	// never allocated.
	ErrNotPrepared = fmt.Errorf("addrspace: load not prepared: %w", types.EINVAL)

	// ErrNoRegion indicates an address outside every region and the stack.
	ErrNoRegion = fmt.Errorf("addrspace: address not mapped: %w", types.EFAULT)

	// ErrDestroyed indicates use of a destroyed address space.
	ErrDestroyed = errors.New("addrspace: address space destroyed")
)
