package types

import "fmt"

// Paddr is a physical memory address.
type Paddr uint32

// Vaddr is a virtual memory address.
type Vaddr uint32

const (
	// PageSize is the size of a page and of a physical frame (4KB).
	PageSize = 4096

	// PageFrame masks an address down to its page.
	PageFrame = 0xfffff000

	// KSeg0 is the base of the direct-mapped, cached kernel segment.
	// Physical address p is visible to the kernel at KSeg0 + p.
	KSeg0 Vaddr = 0x80000000

	// KSeg0Size is the amount of physical memory KSEG0 can reach (512MB).
	KSeg0Size = 0x20000000

	// UserStack is the top of the user stack; user space ends here.
	UserStack Vaddr = 0x80000000
)

// PaddrToKvaddr returns the KSEG0 address of physical address p.
func PaddrToKvaddr(p Paddr) Vaddr {
	return Vaddr(p) + KSeg0
}

// KvaddrToPaddr returns the physical address behind KSEG0 address v.
func KvaddrToPaddr(v Vaddr) Paddr {
	return Paddr(v - KSeg0)
}

// IsKSeg0 reports whether v falls in the direct-mapped kernel segment.
func IsKSeg0(v Vaddr) bool {
	return v >= KSeg0 && uint64(v) < uint64(KSeg0)+KSeg0Size
}

// Page returns v aligned down to its page.
func (v Vaddr) Page() Vaddr { return v & PageFrame }

// Offset returns the byte offset of v within its page.
func (v Vaddr) Offset() uint32 { return uint32(v) &^ PageFrame }

func (v Vaddr) String() string { return fmt.Sprintf("0x%08x", uint32(v)) }

// Page returns p aligned down to its frame.
func (p Paddr) Page() Paddr { return p & PageFrame }

func (p Paddr) String() string { return fmt.Sprintf("0x%08x", uint32(p)) }
