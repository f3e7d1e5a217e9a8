package addrspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/vmcore/internal/ram"
	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm/coremap"
)

// testPlatform backs address spaces with a tracked coremap and counts TLB
// flushes.
type testPlatform struct {
	mem         *ram.RAM
	cm          *coremap.Coremap
	invalidated int
}

func newTestPlatform(t testing.TB, pages int) *testPlatform {
	t.Helper()
	mem, err := ram.New(pages*types.PageSize, types.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	cm := coremap.New(mem)
	require.NoError(t, cm.Bootstrap())
	return &testPlatform{mem: mem, cm: cm}
}

func (p *testPlatform) GetPPages(n int) (types.Paddr, error) { return p.cm.Alloc(n) }
func (p *testPlatform) FreePPages(pa types.Paddr) error      { return p.cm.Free(pa) }
func (p *testPlatform) PageBytes(pa types.Paddr) []byte      { return p.mem.Page(pa) }
func (p *testPlatform) InvalidateTLB()                       { p.invalidated++ }

func (p *testPlatform) free() int { return p.cm.Stats().Free }

const (
	textBase = types.Vaddr(0x00400000)
	dataBase = types.Vaddr(0x10000000)
)

// newLoadedSpace defines a two-page code region and a one-page data region
// and prepares the load.
func newLoadedSpace(t testing.TB, p Platform) *AddressSpace {
	t.Helper()
	as := New(p, nil)
	require.NoError(t, as.DefineRegion(textBase, 2*types.PageSize, true, false, true))
	require.NoError(t, as.DefineRegion(dataBase, 100, true, true, false))
	require.NoError(t, as.PrepareLoad())
	return as
}
