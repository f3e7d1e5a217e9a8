package addrspace

import (
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

// CopyOut copies src into user memory starting at dst. The kernel writes
// through the frames directly, so read-only code pages can be filled.
func (as *AddressSpace) CopyOut(dst types.Vaddr, src []byte) error {
	return as.walk(dst, len(src), func(page []byte, off int) {
		copy(page, src[off:])
	})
}

// CopyIn copies len(dst) bytes of user memory starting at src into dst.
func (as *AddressSpace) CopyIn(dst []byte, src types.Vaddr) error {
	return as.walk(src, len(dst), func(page []byte, off int) {
		copy(dst[off:], page)
	})
}

// walk calls fn for each page-sized piece of [va, va+n), passing the part
// of the frame that lies inside the range and its offset into the range.
func (as *AddressSpace) walk(va types.Vaddr, n int, fn func(page []byte, off int)) error {
	if as.destroyed {
		return ErrDestroyed
	}
	if uint64(va)+uint64(n) > uint64(types.UserStack) {
		return fmt.Errorf("%w: %d bytes at %s", ErrNoRegion, n, va)
	}

	for off := 0; off < n; {
		cur := va + types.Vaddr(off)
		r, _ := as.find(cur.Page())
		if r == nil {
			return fmt.Errorf("%w: %s", ErrNoRegion, cur)
		}
		frame := r.Frames[int(cur.Page()-r.VBase)/types.PageSize]
		if frame == 0 {
			return fmt.Errorf("%w: page %s", ErrNotPrepared, cur.Page())
		}

		pageOff := int(cur.Offset())
		chunk := min(types.PageSize-pageOff, n-off)
		fn(as.platform.PageBytes(frame)[pageOff:pageOff+chunk], off)
		off += chunk
	}
	return nil
}
