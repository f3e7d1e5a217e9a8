package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/vmcore/pkg/config"
	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm/addrspace"
	"github.com/joshuapare/vmcore/vm/tlb"
)

type testProc struct {
	as *addrspace.AddressSpace
}

func (p *testProc) AddrSpace() *addrspace.AddressSpace { return p.as }

// testMachine is a 256KB machine with one page of kernel and an 8-slot TLB.
func testMachine() config.Machine {
	cfg := config.Default()
	cfg.RAMSize = 64 * types.PageSize
	cfg.KernelReserved = types.PageSize
	cfg.NumTLB = 8
	return cfg
}

func newTestVM(t testing.TB, mutate func(*config.Machine)) *VM {
	t.Helper()
	cfg := testMachine()
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	require.NoError(t, v.Bootstrap())
	return v
}

const (
	codeBase = types.Vaddr(0x00400000)
	dataBase = types.Vaddr(0x10000000)
)

// loadProgram builds a prepared space with a three-page code region and a
// one-page data region and makes it current.
func loadProgram(t testing.TB, v *VM) *testProc {
	t.Helper()
	as := v.NewAddrSpace()
	require.NoError(t, as.DefineRegion(codeBase, 3*types.PageSize, true, false, true))
	require.NoError(t, as.DefineRegion(dataBase, 64, true, true, false))
	require.NoError(t, as.PrepareLoad())
	p := &testProc{as: as}
	v.SetCurrent(p)
	return p
}

// lookupTLB returns the valid entry for page, failing if there is not
// exactly one.
func lookupTLB(t testing.TB, v *VM, page types.Vaddr) tlb.Entry {
	t.Helper()
	var found []tlb.Entry
	for _, e := range v.TLBSnapshot() {
		if e.Valid() && e.Page() == page {
			found = append(found, e)
		}
	}
	require.Len(t, found, 1, "translations for %s", page)
	return found[0]
}

func validEntries(v *VM) int {
	n := 0
	for _, e := range v.TLBSnapshot() {
		if e.Valid() {
			n++
		}
	}
	return n
}
