package vm

import (
	"fmt"

	"github.com/joshuapare/vmcore/internal/logger"
	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm/tlb"
)

// Fault handles a translation miss of the given kind at faultAddr by
// loading the page's translation into the TLB.
//
// Errors wrap types.EACCES for a write to a read-only page, types.EINVAL
// for an unknown kind and types.EFAULT for an address the current process
// has not mapped. A page inside a region without a frame panics.
func (v *VM) Fault(kind types.FaultType, faultAddr types.Vaddr) error {
	page := faultAddr.Page()
	logger.Debug("vm: fault", "kind", kind, "vaddr", faultAddr)

	switch kind {
	case types.FaultReadOnly:
		v.counters.faultsReadOnly.Add(1)
		return fmt.Errorf("%w: %s", ErrReadOnly, faultAddr)
	case types.FaultRead:
		v.counters.faultsRead.Add(1)
	case types.FaultWrite:
		v.counters.faultsWrite.Add(1)
	default:
		v.counters.faultsBad.Add(1)
		return fmt.Errorf("%w: %d", ErrBadFaultKind, int(kind))
	}

	as := v.currentSpace()
	if as == nil {
		v.counters.faultsBad.Add(1)
		return ErrNoAddrSpace
	}

	tr, err := as.Lookup(page)
	if err != nil {
		v.counters.faultsBad.Add(1)
		return fmt.Errorf("vm: %s fault at %s: %w", kind, faultAddr, err)
	}

	entry := tlb.NewEntry(page, tr.Frame, !tr.ReadOnly)

	restore := v.ipl.High()
	defer restore()

	slot := v.tlb.Probe(entry.Hi)
	if slot < 0 {
		slot = v.freeSlot()
	}
	if slot >= 0 {
		v.tlb.Write(entry, slot)
	} else {
		slot = v.tlb.Random(entry)
		v.counters.tlbEvictions.Add(1)
	}
	v.counters.tlbFills.Add(1)

	logger.Debug("vm: tlb fill", "vaddr", page, "paddr", tr.Frame, "slot", slot, "readonly", tr.ReadOnly)
	return nil
}

// freeSlot returns the first invalid TLB slot, or -1 when all are in use.
// Interrupts must be disabled.
func (v *VM) freeSlot() int {
	for i := range v.tlb.Len() {
		if !v.tlb.Read(i).Valid() {
			return i
		}
	}
	return -1
}

// Shootdown invalidates the translation for va on CPU target. Only CPU 0
// exists; any other target returns ErrNoCrossCPU.
func (v *VM) Shootdown(target int, va types.Vaddr) error {
	if target != 0 {
		return fmt.Errorf("%w: cpu %d", ErrNoCrossCPU, target)
	}

	restore := v.ipl.High()
	defer restore()
	if slot := v.tlb.Probe(uint32(va.Page())); slot >= 0 {
		v.tlb.Invalidate(slot)
	}
	v.counters.shootdowns.Add(1)
	return nil
}

// ShootdownAll invalidates every translation on CPU target. Only CPU 0
// exists; any other target returns ErrNoCrossCPU.
func (v *VM) ShootdownAll(target int) error {
	if target != 0 {
		return fmt.Errorf("%w: cpu %d", ErrNoCrossCPU, target)
	}
	v.InvalidateTLB()
	v.counters.shootdowns.Add(1)
	return nil
}
