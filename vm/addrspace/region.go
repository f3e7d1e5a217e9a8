package addrspace

import "github.com/joshuapare/vmcore/pkg/types"

// Perm is the set of access permissions a region was declared with.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Region is a page-aligned range of virtual memory with one frame per page.
// A zero entry in Frames is a page with no frame yet.
type Region struct {
	VBase  types.Vaddr
	NPages int
	Perm   Perm
	Frames []types.Paddr
}

func newRegion(vbase types.Vaddr, npages int, perm Perm) *Region {
	return &Region{
		VBase:  vbase,
		NPages: npages,
		Perm:   perm,
		Frames: make([]types.Paddr, npages),
	}
}

// Top returns the first address past the region.
func (r *Region) Top() uint64 {
	return uint64(r.VBase) + uint64(r.NPages)*types.PageSize
}

// Contains reports whether va falls inside the region.
func (r *Region) Contains(va types.Vaddr) bool {
	return va >= r.VBase && uint64(va) < r.Top()
}

func (r *Region) overlaps(base, top uint64) bool {
	return base < r.Top() && uint64(r.VBase) < top
}

// clone returns a deep copy, frames included.
func (r *Region) clone() Region {
	c := *r
	c.Frames = append([]types.Paddr(nil), r.Frames...)
	return c
}
