package addrspace

import (
	"fmt"

	"github.com/joshuapare/vmcore/internal/logger"
	"github.com/joshuapare/vmcore/pkg/types"
)

// Platform is the machine an address space draws frames from.
type Platform interface {
	// GetPPages allocates npages contiguous physical frames.
	GetPPages(npages int) (types.Paddr, error)

	// FreePPages releases a run previously returned by GetPPages.
	FreePPages(pa types.Paddr) error

	// PageBytes returns the page-sized frame at pa for direct access.
	PageBytes(pa types.Paddr) []byte

	// InvalidateTLB discards every cached translation on the current CPU.
	InvalidateTLB()
}

// Options controls the layout limits of an AddressSpace.
type Options struct {
	// MaxRegions is how many non-stack regions DefineRegion accepts.
	// Default: types.DefaultMaxRegions
	MaxRegions int

	// StackPages is the size of the stack in pages.
	// Default: types.DefaultStackPages
	StackPages int
}

// DefaultOptions returns the limits the kernel was built around.
func DefaultOptions() *Options {
	return &Options{
		MaxRegions: types.DefaultMaxRegions,
		StackPages: types.DefaultStackPages,
	}
}

// AddressSpace is the virtual memory of one process.
type AddressSpace struct {
	platform   Platform
	maxRegions int
	stackPages int

	regions []*Region
	stack   *Region

	prepared     bool
	loadComplete bool
	destroyed    bool
}

// Translation is the result of a successful Lookup.
type Translation struct {
	Page     types.Vaddr
	Frame    types.Paddr
	ReadOnly bool // code page after CompleteLoad
}

// New returns an empty address space: no regions and no frames. A nil
// opts uses DefaultOptions.
func New(p Platform, opts *Options) *AddressSpace {
	if opts == nil {
		opts = DefaultOptions()
	}
	as := &AddressSpace{
		platform:   p,
		maxRegions: opts.MaxRegions,
		stackPages: opts.StackPages,
	}
	stackBase := types.UserStack - types.Vaddr(as.stackPages*types.PageSize)
	as.stack = newRegion(stackBase, as.stackPages, PermRead|PermWrite)
	return as
}

// DefineRegion adds the region covering size bytes at vaddr, widened to
// whole pages. The permission flags are recorded only.
//
// On error the address space is unchanged.
func (as *AddressSpace) DefineRegion(vaddr types.Vaddr, size int, readable, writable, executable bool) error {
	switch {
	case as.destroyed:
		return ErrDestroyed
	case as.prepared:
		return ErrAlreadyPrepared
	case len(as.regions) >= as.maxRegions:
		logger.Warn("addrspace: too many regions", "vaddr", vaddr, "limit", as.maxRegions)
		return ErrTooManyRegions
	case size <= 0:
		return fmt.Errorf("%w: empty region at %s", ErrBadRange, vaddr)
	}

	base := types.RoundDown(uint64(vaddr))
	top := types.RoundUp(uint64(vaddr) + uint64(size))
	if top > uint64(types.UserStack) {
		return fmt.Errorf("%w: %d bytes at %s", ErrBadRange, size, vaddr)
	}

	for _, r := range as.all() {
		if r.overlaps(base, top) {
			return fmt.Errorf("%w: [%s, 0x%08x) and [%s, 0x%08x)", ErrOverlap, types.Vaddr(base), top, r.VBase, r.Top())
		}
	}

	var perm Perm
	if readable {
		perm |= PermRead
	}
	if writable {
		perm |= PermWrite
	}
	if executable {
		perm |= PermExec
	}

	npages := int((top - base) / types.PageSize)
	as.regions = append(as.regions, newRegion(types.Vaddr(base), npages, perm))

	logger.Debug("addrspace: define region",
		"index", len(as.regions)-1,
		"vbase", types.Vaddr(base),
		"npages", npages,
		"perm", perm)
	return nil
}

// PrepareLoad gives every page of every region and of the stack its own
// zero-filled frame. Pages that already have a frame are left alone, so
// calling it again never leaks.
//
// When memory runs out the frames obtained so far stay recorded and the
// caller is expected to Destroy the space.
func (as *AddressSpace) PrepareLoad() error {
	if as.destroyed {
		return ErrDestroyed
	}
	as.prepared = true

	allocated := 0
	for _, r := range as.all() {
		for i := range r.Frames {
			if r.Frames[i] != 0 {
				continue
			}
			pa, err := as.platform.GetPPages(1)
			if err != nil {
				return fmt.Errorf("addrspace: prepare page %d of region at %s: %w", i, r.VBase, err)
			}
			clear(as.platform.PageBytes(pa))
			r.Frames[i] = pa
			allocated++
		}
	}

	logger.Debug("addrspace: prepare load", "frames", allocated)
	return nil
}

// CompleteLoad marks the program image as loaded. From here on the code
// region translates read-only; the TLB is flushed so no writable code
// entry cached during the load survives.
func (as *AddressSpace) CompleteLoad() error {
	if as.destroyed {
		return ErrDestroyed
	}
	as.loadComplete = true
	as.platform.InvalidateTLB()
	return nil
}

// DefineStack returns the initial user stack pointer.
func (as *AddressSpace) DefineStack() (types.Vaddr, error) {
	if as.destroyed {
		return 0, ErrDestroyed
	}
	for _, pa := range as.stack.Frames {
		if pa == 0 {
			return 0, fmt.Errorf("%w: stack has no frames", ErrNotPrepared)
		}
	}
	return types.UserStack, nil
}

// Copy returns a new address space with the same layout and a private copy
// of every page. On failure nothing allocated for the copy is leaked.
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	if as.destroyed {
		return nil, ErrDestroyed
	}

	dup := New(as.platform, &Options{MaxRegions: as.maxRegions, StackPages: as.stackPages})
	for _, r := range as.regions {
		dup.regions = append(dup.regions, newRegion(r.VBase, r.NPages, r.Perm))
	}

	if err := dup.PrepareLoad(); err != nil {
		dup.Destroy()
		return nil, fmt.Errorf("addrspace: copy: %w", err)
	}

	src, dst := as.all(), dup.all()
	for i := range src {
		for j, pa := range src[i].Frames {
			if pa == 0 {
				continue
			}
			copy(as.platform.PageBytes(dst[i].Frames[j]), as.platform.PageBytes(pa))
		}
	}
	dup.loadComplete = as.loadComplete

	logger.Debug("addrspace: copy", "pages", dup.PageCount())
	return dup, nil
}

// Destroy returns every frame to the platform. It is safe on a space whose
// load was never prepared or only partly prepared, and safe to call twice.
func (as *AddressSpace) Destroy() {
	freed := 0
	for _, r := range as.all() {
		for i, pa := range r.Frames {
			if pa == 0 {
				continue
			}
			if err := as.platform.FreePPages(pa); err != nil {
				logger.Error("addrspace: free frame", "paddr", pa, "err", err)
			}
			r.Frames[i] = 0
			freed++
		}
	}
	as.destroyed = true
	logger.Debug("addrspace: destroy", "frames", freed)
}

// Activate makes this the current address space by flushing every cached
// translation, which belongs to whichever space ran before.
func (as *AddressSpace) Activate() {
	as.platform.InvalidateTLB()
}

// Deactivate is called when the space stops being current. Nothing to do.
func (as *AddressSpace) Deactivate() {}

// Lookup translates va to the frame backing its page.
//
// An address outside every region returns ErrNoRegion. A page inside a
// region without a frame means the loader skipped PrepareLoad; that is a
// kernel bug and panics.
func (as *AddressSpace) Lookup(va types.Vaddr) (Translation, error) {
	if as.destroyed {
		return Translation{}, fmt.Errorf("%w: %w", ErrDestroyed, types.EFAULT)
	}
	page := va.Page()
	r, idx := as.find(page)
	if r == nil {
		return Translation{}, fmt.Errorf("%w: %s", ErrNoRegion, va)
	}

	frame := r.Frames[int(page-r.VBase)/types.PageSize]
	if frame == 0 {
		panic(fmt.Sprintf("addrspace: page %s of region at %s has no frame", page, r.VBase))
	}

	return Translation{
		Page:     page,
		Frame:    frame,
		ReadOnly: idx == 0 && as.loadComplete,
	}, nil
}

// Regions returns a copy of the non-stack regions in definition order.
func (as *AddressSpace) Regions() []Region {
	out := make([]Region, len(as.regions))
	for i, r := range as.regions {
		out[i] = r.clone()
	}
	return out
}

// Stack returns a copy of the stack region.
func (as *AddressSpace) Stack() Region { return as.stack.clone() }

// LoadComplete reports whether CompleteLoad has run.
func (as *AddressSpace) LoadComplete() bool { return as.loadComplete }

// Destroyed reports whether Destroy has run.
func (as *AddressSpace) Destroyed() bool { return as.destroyed }

// PageCount returns the number of pages in all regions and the stack.
func (as *AddressSpace) PageCount() int {
	n := 0
	for _, r := range as.all() {
		n += r.NPages
	}
	return n
}

// all returns the regions followed by the stack.
func (as *AddressSpace) all() []*Region {
	out := make([]*Region, 0, len(as.regions)+1)
	out = append(out, as.regions...)
	return append(out, as.stack)
}

// find returns the region holding page and its index, -1 for the stack.
func (as *AddressSpace) find(page types.Vaddr) (*Region, int) {
	for i, r := range as.regions {
		if r.Contains(page) {
			return r, i
		}
	}
	if as.stack.Contains(page) {
		return as.stack, -1
	}
	return nil, 0
}
