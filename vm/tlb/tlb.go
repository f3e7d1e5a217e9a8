// Package tlb simulates the MIPS translation lookaside buffer: a small,
// software-loaded cache of virtual page to physical frame translations.
//
// Each slot holds an EntryHi word (virtual page) and an EntryLo word
// (physical frame plus DIRTY and VALID bits). Hardware consults the TLB on
// every user access; a miss or a write to a non-dirty entry traps to the
// kernel's fault handler, which refills a slot.
//
// TLB is not thread-safe. Like the hardware it stands in for, it must only
// be touched with interrupts disabled (see internal/spl).
package tlb

import (
	"math/rand/v2"

	"github.com/joshuapare/vmcore/pkg/types"
)

// EntryHi / EntryLo field masks, matching <mips/tlb.h>.
const (
	HiVPage   uint32 = 0xfffff000
	LoPPage   uint32 = 0xfffff000
	LoNoCache uint32 = 0x00000800
	LoDirty   uint32 = 0x00000400 // Writable
	LoValid   uint32 = 0x00000200
)

// Entry is the contents of one TLB slot.
type Entry struct {
	Hi uint32
	Lo uint32
}

// HiInvalid returns an EntryHi value for slot that matches no user address.
// Each slot gets a distinct KSEG0 page so invalid entries never collide.
func HiInvalid(slot int) uint32 {
	return uint32(0x80000+slot) << 12
}

// NewEntry returns a valid entry mapping page to frame.
func NewEntry(page types.Vaddr, frame types.Paddr, writable bool) Entry {
	lo := uint32(frame)&LoPPage | LoValid
	if writable {
		lo |= LoDirty
	}
	return Entry{Hi: uint32(page) & HiVPage, Lo: lo}
}

// Valid reports whether the entry holds a translation.
func (e Entry) Valid() bool { return e.Lo&LoValid != 0 }

// Writable reports whether writes through the entry are allowed.
func (e Entry) Writable() bool { return e.Lo&LoDirty != 0 }

// Page returns the virtual page of the entry.
func (e Entry) Page() types.Vaddr { return types.Vaddr(e.Hi & HiVPage) }

// Frame returns the physical frame of the entry.
func (e Entry) Frame() types.Paddr { return types.Paddr(e.Lo & LoPPage) }

// TLB is the translation cache of one CPU.
type TLB struct {
	slots []Entry
	rng   *rand.Rand
}

// New returns a TLB with n slots, all invalid. seed drives the victim
// choice of Random.
func New(n int, seed uint64) *TLB {
	t := &TLB{
		slots: make([]Entry, n),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	t.InvalidateAll()
	return t
}

// Len returns the number of slots.
func (t *TLB) Len() int { return len(t.slots) }

// Read returns the entry in slot.
func (t *TLB) Read(slot int) Entry { return t.slots[slot] }

// Write stores e in slot.
func (t *TLB) Write(e Entry, slot int) { t.slots[slot] = e }

// Random stores e in a slot chosen at random and returns the slot. No
// recency is tracked; an evicted translation is simply faulted back in.
func (t *TLB) Random(e Entry) int {
	slot := t.rng.IntN(len(t.slots))
	t.slots[slot] = e
	return slot
}

// Probe returns the slot whose EntryHi matches hi, or -1.
func (t *TLB) Probe(hi uint32) int {
	for i, e := range t.slots {
		if e.Hi == hi&HiVPage && e.Valid() {
			return i
		}
	}
	return -1
}

// Invalidate clears slot.
func (t *TLB) Invalidate(slot int) {
	t.slots[slot] = Entry{Hi: HiInvalid(slot)}
}

// InvalidateAll clears every slot.
func (t *TLB) InvalidateAll() {
	for i := range t.slots {
		t.Invalidate(i)
	}
}

// Snapshot returns a copy of every slot.
func (t *TLB) Snapshot() []Entry {
	out := make([]Entry, len(t.slots))
	copy(out, t.slots)
	return out
}
