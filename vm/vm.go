package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/vmcore/internal/logger"
	"github.com/joshuapare/vmcore/internal/ram"
	"github.com/joshuapare/vmcore/internal/spl"
	"github.com/joshuapare/vmcore/pkg/config"
	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm/addrspace"
	"github.com/joshuapare/vmcore/vm/coremap"
	"github.com/joshuapare/vmcore/vm/tlb"
)

// Process is the part of a process the memory system needs.
type Process interface {
	// AddrSpace returns the process's address space, or nil while it has
	// none (kernel threads, early in exec).
	AddrSpace() *addrspace.AddressSpace
}

// VM is the memory context of one machine.
type VM struct {
	cfg config.Machine
	mem *ram.RAM
	cm  *coremap.Coremap
	tlb *tlb.TLB
	ipl spl.IPL

	curMu   sync.Mutex
	current Process

	counters counters
}

type counters struct {
	faultsRead     atomic.Uint64
	faultsWrite    atomic.Uint64
	faultsReadOnly atomic.Uint64
	faultsBad      atomic.Uint64
	tlbFills       atomic.Uint64
	tlbEvictions   atomic.Uint64
	tlbFlushes     atomic.Uint64
	shootdowns     atomic.Uint64
	kpagesAlloc    atomic.Uint64
	kpagesFree     atomic.Uint64
}

// Stats is a point-in-time view of the memory system.
type Stats struct {
	Coremap        coremap.Stats `json:"coremap"`
	FaultsRead     uint64        `json:"faults_read"`
	FaultsWrite    uint64        `json:"faults_write"`
	FaultsReadOnly uint64        `json:"faults_readonly"`
	FaultsBad      uint64        `json:"faults_bad"` // Unmapped addresses and unknown kinds
	TLBFills       uint64        `json:"tlb_fills"`
	TLBEvictions   uint64        `json:"tlb_evictions"`
	TLBFlushes     uint64        `json:"tlb_flushes"`
	Shootdowns     uint64        `json:"shootdowns"`
	KPagesAlloc    uint64        `json:"kpages_alloc"`
	KPagesFree     uint64        `json:"kpages_free"`
}

// New builds a machine from cfg. The coremap starts in bump mode; call
// Bootstrap once early boot is done.
func New(cfg config.Machine) (*VM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mem, err := ram.New(cfg.RAMSize, cfg.KernelReserved)
	if err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}
	return &VM{
		cfg: cfg,
		mem: mem,
		cm:  coremap.New(mem),
		tlb: tlb.New(cfg.NumTLB, cfg.Seed),
	}, nil
}

// Bootstrap switches frame allocation from bump mode to the coremap.
func (v *VM) Bootstrap() error {
	if err := v.cm.Bootstrap(); err != nil {
		return err
	}
	logger.Info("vm: bootstrap complete",
		"ram", v.mem.Size(),
		"tlb", v.tlb.Len(),
		"max_regions", v.cfg.MaxRegions,
		"stack_pages", v.cfg.StackPages)
	return nil
}

// Config returns the machine configuration.
func (v *VM) Config() config.Machine { return v.cfg }

// Close releases the simulated RAM. The VM must not be used afterwards.
func (v *VM) Close() error { return v.mem.Close() }

// AllocKPages allocates npages contiguous frames for the kernel and returns
// their KSEG0 address.
func (v *VM) AllocKPages(npages int) (types.Vaddr, error) {
	pa, err := v.cm.Alloc(npages)
	if err != nil {
		return 0, err
	}
	v.counters.kpagesAlloc.Add(1)
	return types.PaddrToKvaddr(pa), nil
}

// FreeKPages releases the run at va, an address returned by AllocKPages.
func (v *VM) FreeKPages(va types.Vaddr) error {
	if !types.IsKSeg0(va) {
		return fmt.Errorf("%w: %s", ErrNotKernelAddress, va)
	}
	if err := v.cm.Free(types.KvaddrToPaddr(va)); err != nil {
		return err
	}
	v.counters.kpagesFree.Add(1)
	return nil
}

// KBytes returns n bytes of memory at KSEG0 address va.
func (v *VM) KBytes(va types.Vaddr, n int) []byte {
	return v.mem.Bytes(types.KvaddrToPaddr(va), n)
}

// NewAddrSpace returns an empty address space backed by this machine.
func (v *VM) NewAddrSpace() *addrspace.AddressSpace {
	return addrspace.New(v, &addrspace.Options{
		MaxRegions: v.cfg.MaxRegions,
		StackPages: v.cfg.StackPages,
	})
}

// SetCurrent makes p the running process. The outgoing address space is
// deactivated and the incoming one activated, which flushes the TLB.
func (v *VM) SetCurrent(p Process) {
	v.curMu.Lock()
	defer v.curMu.Unlock()

	if v.current != nil {
		if as := v.current.AddrSpace(); as != nil {
			as.Deactivate()
		}
	}
	v.current = p
	if p != nil {
		if as := p.AddrSpace(); as != nil {
			as.Activate()
		}
	}
}

// Current returns the running process, or nil.
func (v *VM) Current() Process {
	v.curMu.Lock()
	defer v.curMu.Unlock()
	return v.current
}

func (v *VM) currentSpace() *addrspace.AddressSpace {
	p := v.Current()
	if p == nil {
		return nil
	}
	return p.AddrSpace()
}

// Coremap exposes the frame allocator for inspection.
func (v *VM) Coremap() *coremap.Coremap { return v.cm }

// TLBSnapshot returns a copy of every translation cache slot.
func (v *VM) TLBSnapshot() []tlb.Entry {
	restore := v.ipl.High()
	defer restore()
	return v.tlb.Snapshot()
}

// Stats returns the current counters and coremap state.
func (v *VM) Stats() Stats {
	c := &v.counters
	return Stats{
		Coremap:        v.cm.Stats(),
		FaultsRead:     c.faultsRead.Load(),
		FaultsWrite:    c.faultsWrite.Load(),
		FaultsReadOnly: c.faultsReadOnly.Load(),
		FaultsBad:      c.faultsBad.Load(),
		TLBFills:       c.tlbFills.Load(),
		TLBEvictions:   c.tlbEvictions.Load(),
		TLBFlushes:     c.tlbFlushes.Load(),
		Shootdowns:     c.shootdowns.Load(),
		KPagesAlloc:    c.kpagesAlloc.Load(),
		KPagesFree:     c.kpagesFree.Load(),
	}
}

// GetPPages implements addrspace.Platform.
func (v *VM) GetPPages(npages int) (types.Paddr, error) { return v.cm.Alloc(npages) }

// FreePPages implements addrspace.Platform.
func (v *VM) FreePPages(pa types.Paddr) error { return v.cm.Free(pa) }

// PageBytes implements addrspace.Platform.
func (v *VM) PageBytes(pa types.Paddr) []byte { return v.mem.Page(pa) }

// InvalidateTLB implements addrspace.Platform.
func (v *VM) InvalidateTLB() {
	restore := v.ipl.High()
	defer restore()
	v.tlb.InvalidateAll()
	v.counters.tlbFlushes.Add(1)
}

var _ addrspace.Platform = (*VM)(nil)
