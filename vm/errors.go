package vm

import (
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

var (
	// ErrReadOnly indicates a write to a page translated read-only.
	ErrReadOnly = fmt.Errorf("vm: write to read-only page: %w", types.EACCES)

	// ErrBadFaultKind indicates a fault type the handler does not know.
	ErrBadFaultKind = fmt.Errorf("vm: unknown fault type: %w", types.EINVAL)

	// ErrNoAddrSpace indicates a fault with no current process or no
	// address space, which happens early in boot.
	ErrNoAddrSpace = fmt.Errorf("vm: no current address space: %w", types.EFAULT)

	// ErrNotKernelAddress indicates a kernel page address outside KSEG0.
	ErrNotKernelAddress = fmt.Errorf("vm: not a KSEG0 address: %w", types.EINVAL)

	// ErrNoCrossCPU indicates a translation shootdown aimed at another CPU.
	ErrNoCrossCPU = fmt.Errorf("vm: cross-CPU shootdown: %w", types.EUNIMP)
)
