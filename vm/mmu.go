package vm

import (
	"fmt"

	"github.com/joshuapare/vmcore/pkg/types"
)

// Access translates a user access at va the way the MMU would: a TLB hit
// returns the physical address, a miss or a write through a clean entry
// traps to Fault, and a resolved miss is retried once.
func (v *VM) Access(va types.Vaddr, write bool) (types.Paddr, error) {
	for attempt := 0; ; attempt++ {
		pa, hit, writable := v.probe(va)
		switch {
		case hit && (!write || writable):
			return pa, nil
		case hit:
			return 0, v.Fault(types.FaultReadOnly, va)
		case attempt > 0:
			return 0, fmt.Errorf("vm: translation for %s lost after refill", va)
		}

		kind := types.FaultRead
		if write {
			kind = types.FaultWrite
		}
		if err := v.Fault(kind, va); err != nil {
			return 0, err
		}
	}
}

func (v *VM) probe(va types.Vaddr) (pa types.Paddr, hit, writable bool) {
	restore := v.ipl.High()
	defer restore()

	slot := v.tlb.Probe(uint32(va.Page()))
	if slot < 0 {
		return 0, false, false
	}
	e := v.tlb.Read(slot)
	return e.Frame() | types.Paddr(va.Offset()), true, e.Writable()
}
