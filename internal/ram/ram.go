// Package ram simulates the installed physical memory of the machine.
//
// Memory below the first free physical address holds the kernel image and
// boot data. Before the coremap exists, the kernel takes pages from the
// bottom of free memory with StealMem, a bump allocator that never gives
// memory back. GetSize hands whatever is left to the coremap and ends
// stealing for the rest of the boot.
//
// RAM is not thread-safe; the coremap serializes every call.
package ram

import (
	"fmt"

	"github.com/joshuapare/vmcore/internal/buf"
	"github.com/joshuapare/vmcore/pkg/types"
)

// RAM is the simulated physical memory of one boot.
type RAM struct {
	mem     []byte
	release func() error

	// firstpaddr is the next address StealMem will return; lastpaddr is the
	// top of installed memory. Both are zero once GetSize has run.
	firstpaddr types.Paddr
	lastpaddr  types.Paddr
}

// New maps size bytes of physical memory. The first reserved bytes belong
// to the kernel image; the first free address is the page boundary above
// them. Page 0 holds the exception vectors and is never free, so a zero
// physical address always means failure.
func New(size, reserved int) (*RAM, error) {
	if size <= 0 || size > types.KSeg0Size {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, size)
	}
	if reserved < 0 || reserved >= size {
		return nil, fmt.Errorf("%w: reserved %d of %d bytes", ErrBadSize, reserved, size)
	}

	mem, release, err := mapMemory(size)
	if err != nil {
		return nil, fmt.Errorf("ram: map %d bytes: %w", size, err)
	}

	first := max(types.RoundUp(uint64(reserved)), types.PageSize)
	if first >= uint64(size) {
		_ = release()
		return nil, fmt.Errorf("%w: no free page above %d reserved bytes", ErrBadSize, reserved)
	}

	return &RAM{
		mem:        mem,
		release:    release,
		firstpaddr: types.Paddr(first),
		lastpaddr:  types.Paddr(size),
	}, nil
}

// Size returns the amount of installed memory in bytes.
func (r *RAM) Size() int { return len(r.mem) }

// StealMem takes npages pages from the bottom of free memory and returns
// their physical base, or 0 when not enough memory remains or the memory
// has already been handed off with GetSize.
func (r *RAM) StealMem(npages int) types.Paddr {
	if npages <= 0 {
		return 0
	}
	size := uint64(npages) * types.PageSize
	if uint64(r.firstpaddr)+size > uint64(r.lastpaddr) {
		return 0
	}
	paddr := r.firstpaddr
	r.firstpaddr += types.Paddr(size)
	return paddr
}

// GetSize returns the range of memory not yet stolen, [lo, hi). Ownership
// of the range passes to the caller: afterwards StealMem always fails and
// GetSize returns an empty range.
func (r *RAM) GetSize() (lo, hi types.Paddr) {
	lo, hi = r.firstpaddr, r.lastpaddr
	r.firstpaddr, r.lastpaddr = 0, 0
	return lo, hi
}

// Bytes returns the n bytes of physical memory starting at pa. The slice
// aliases RAM. An out-of-range access is a bus error and panics.
func (r *RAM) Bytes(pa types.Paddr, n int) []byte {
	b, ok := buf.Slice(r.mem, int(pa), n)
	if !ok {
		panic(fmt.Sprintf("ram: bus error: %d bytes at %s beyond %d bytes of memory", n, pa, len(r.mem)))
	}
	return b
}

// Page returns the frame starting at pa, which must be page aligned.
func (r *RAM) Page(pa types.Paddr) []byte {
	if !types.PageAligned(uint64(pa)) {
		panic(fmt.Sprintf("ram: unaligned frame address %s", pa))
	}
	return r.Bytes(pa, types.PageSize)
}

// Close unmaps the memory. Further use of the RAM is invalid.
func (r *RAM) Close() error {
	if r.release == nil {
		return nil
	}
	err := r.release()
	r.release = nil
	r.mem = nil
	return err
}
