package coremap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/vmcore/internal/ram"
	"github.com/joshuapare/vmcore/pkg/types"
)

// newTestCoremap returns a coremap in bump mode over pages pages of RAM with
// one page of kernel image.
func newTestCoremap(t testing.TB, pages int) *Coremap {
	t.Helper()
	mem, err := ram.New(pages*types.PageSize, types.PageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	return New(mem)
}

// newBootedCoremap returns a tracked coremap. With 64 pages of RAM and one
// page of kernel, it tracks 63 frames, the first of which holds the table.
func newBootedCoremap(t testing.TB, pages int) *Coremap {
	t.Helper()
	cm := newTestCoremap(t, pages)
	require.NoError(t, cm.Bootstrap())
	return cm
}

func (c *Coremap) indexOf(t testing.TB, pa types.Paddr) int {
	t.Helper()
	idx, ok := c.frameIndex(pa)
	require.True(t, ok, "address %s outside tracked memory", pa)
	return idx
}

// checkInvariants verifies that live (run base -> length) matches the frame
// table exactly: every live run is marked 1..n with its length on the first
// frame, no frame belongs to two runs, and free + held == total.
func checkInvariants(t testing.TB, c *Coremap, live map[types.Paddr]int) {
	t.Helper()

	snap := c.Snapshot()
	stats := c.Stats()
	owner := make([]types.Paddr, len(snap))

	held := 0
	for base, n := range live {
		start := c.indexOf(t, base)
		require.Equal(t, uint32(n), snap[start].Length, "run %s length", base)
		for k := range n {
			idx := start + k
			require.Less(t, idx, len(snap), "run %s runs off the end", base)
			require.Zero(t, owner[idx], "frame %d owned by %s and %s", idx, owner[idx], base)
			owner[idx] = base
			require.Equal(t, uint32(k+1), snap[idx].Position, "frame %d of run %s", idx, base)
		}
		held += n
	}

	free := 0
	for idx, f := range snap {
		if idx < stats.Reserved {
			require.NotZero(t, f.Position, "table frame %d must stay reserved", idx)
			continue
		}
		if owner[idx] == 0 {
			require.Zero(t, f.Position, "frame %d is marked used but owned by no run", idx)
			require.Zero(t, f.Length, "frame %d is free but carries a length", idx)
			free++
		}
	}

	require.Equal(t, stats.Free, free, "free counter")
	require.Equal(t, stats.Frames, free+held+stats.Reserved, "conservation")
	require.Equal(t, len(live), stats.Runs, "live run count")
}
