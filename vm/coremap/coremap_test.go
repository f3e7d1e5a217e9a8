package coremap

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/vmcore/pkg/types"
)

func TestBootstrap_Layout(t *testing.T) {
	cm := newBootedCoremap(t, 64)

	stats := cm.Stats()
	assert.True(t, stats.Tracked)
	assert.Equal(t, types.Paddr(types.PageSize), stats.Base)
	assert.Equal(t, 63, stats.Frames)
	assert.Equal(t, 1, stats.Reserved, "63 entries of 8 bytes fit in one frame")
	assert.Equal(t, 62, stats.Free)
	assert.Equal(t, 1, stats.Used)
	assert.Zero(t, stats.Runs)

	snap := cm.Snapshot()
	require.Len(t, snap, 63)
	assert.Equal(t, Frame{Position: 1, Length: 1}, snap[0])
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, Frame{}, snap[i], "frame %d", i)
	}
}

func TestBootstrap_TableSpansSeveralFrames(t *testing.T) {
	// 2048 frames * 8 bytes = 16KB of table.
	cm := newBootedCoremap(t, 2049)

	stats := cm.Stats()
	assert.Equal(t, 2048, stats.Frames)
	assert.Equal(t, 4, stats.Reserved)
	assert.Equal(t, 2044, stats.Free)

	snap := cm.Snapshot()
	for i := range 4 {
		assert.Equal(t, uint32(i+1), snap[i].Position)
	}
	assert.Equal(t, uint32(4), snap[0].Length)
	checkInvariants(t, cm, map[types.Paddr]int{})
}

func TestBootstrap_Twice(t *testing.T) {
	cm := newBootedCoremap(t, 64)
	err := cm.Bootstrap()
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)
	assert.Equal(t, 62, cm.Stats().Free, "second bootstrap must not reset the table")
}

func TestBootstrap_TooLittleMemory(t *testing.T) {
	// One free frame cannot hold the table and anything else.
	cm := newTestCoremap(t, 2)
	err := cm.Bootstrap()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ENOMEM))
	assert.False(t, cm.Stats().Tracked)
}

func TestBumpMode_NeverReuses(t *testing.T) {
	cm := newTestCoremap(t, 64)

	a, err := cm.Alloc(2)
	require.NoError(t, err)
	assert.Equal(t, types.Paddr(types.PageSize), a)

	require.NoError(t, cm.Free(a), "free in bump mode is a no-op")

	b, err := cm.Alloc(1)
	require.NoError(t, err)
	assert.Equal(t, types.Paddr(3*types.PageSize), b, "bump memory is never handed out twice")

	require.NoError(t, cm.Bootstrap())
	stats := cm.Stats()
	assert.Equal(t, types.Paddr(4*types.PageSize), stats.Base, "tracked memory starts above stolen pages")
	assert.Equal(t, 60, stats.Frames)
	assert.False(t, cm.Contains(a))
	assert.False(t, cm.Contains(b))
}

func TestBumpMode_Exhaustion(t *testing.T) {
	cm := newTestCoremap(t, 4)

	_, err := cm.Alloc(3)
	require.NoError(t, err)
	_, err = cm.Alloc(1)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.True(t, errors.Is(err, types.ENOMEM))
}

func TestAlloc_BadCount(t *testing.T) {
	cm := newBootedCoremap(t, 64)
	for _, n := range []int{0, -1} {
		_, err := cm.Alloc(n)
		assert.ErrorIs(t, err, ErrBadCount)
	}
	cm2 := newTestCoremap(t, 64)
	_, err := cm2.Alloc(0)
	assert.ErrorIs(t, err, ErrBadCount)
}

func TestAlloc_ContiguousAndAligned(t *testing.T) {
	cm := newBootedCoremap(t, 64)
	live := map[types.Paddr]int{}

	for _, n := range []int{1, 3, 7, 2} {
		pa, err := cm.Alloc(n)
		require.NoError(t, err)
		assert.True(t, types.PageAligned(uint64(pa)))
		live[pa] = n
		checkInvariants(t, cm, live)
	}

	// Runs are packed from the bottom in allocation order.
	stats := cm.Stats()
	assert.Equal(t, 62-13, stats.Free)
}

// buildPattern leaves free runs of lengths 2, 5 and 1 at increasing
// addresses with everything else allocated, and returns their bases.
func buildPattern(t *testing.T, cm *Coremap) (two, five, one types.Paddr) {
	t.Helper()

	alloc := func(n int) types.Paddr {
		pa, err := cm.Alloc(n)
		require.NoError(t, err)
		return pa
	}

	two = alloc(2)
	_ = alloc(1)
	five = alloc(5)
	_ = alloc(1)
	one = alloc(1)
	_ = alloc(cm.Stats().Free)
	require.Zero(t, cm.Stats().Free)

	require.NoError(t, cm.Free(two))
	require.NoError(t, cm.Free(five))
	require.NoError(t, cm.Free(one))
	require.Equal(t, 8, cm.Stats().Free)
	return two, five, one
}

func TestAlloc_FirstFit(t *testing.T) {
	t.Run("two pages take the first run not the largest", func(t *testing.T) {
		cm := newBootedCoremap(t, 64)
		two, _, _ := buildPattern(t, cm)

		pa, err := cm.Alloc(2)
		require.NoError(t, err)
		assert.Equal(t, two, pa)
	})

	t.Run("one page takes the lowest free frame", func(t *testing.T) {
		cm := newBootedCoremap(t, 64)
		two, _, _ := buildPattern(t, cm)

		pa, err := cm.Alloc(1)
		require.NoError(t, err)
		assert.Equal(t, two, pa)
	})

	t.Run("three pages skip the short run", func(t *testing.T) {
		cm := newBootedCoremap(t, 64)
		_, five, _ := buildPattern(t, cm)

		pa, err := cm.Alloc(3)
		require.NoError(t, err)
		assert.Equal(t, five, pa)

		// The tail of the 5-frame run is the second 2-page fit.
		first, err := cm.Alloc(2)
		require.NoError(t, err)
		second, err := cm.Alloc(2)
		require.NoError(t, err)
		assert.Less(t, first, second)
		assert.Equal(t, five+3*types.PageSize, second)
	})

	t.Run("six pages do not fit anywhere", func(t *testing.T) {
		cm := newBootedCoremap(t, 64)
		buildPattern(t, cm)

		_, err := cm.Alloc(6)
		assert.ErrorIs(t, err, ErrNoMemory)
		assert.Equal(t, 8, cm.Stats().Free, "failed alloc must not mark anything")
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		var got []types.Paddr
		for range 3 {
			cm := newBootedCoremap(t, 64)
			buildPattern(t, cm)
			pa, err := cm.Alloc(2)
			require.NoError(t, err)
			got = append(got, pa)
		}
		assert.Equal(t, got[0], got[1])
		assert.Equal(t, got[1], got[2])
	})
}

func TestFree_AdjacentSingleFrameRunsStayIndependent(t *testing.T) {
	cm := newBootedCoremap(t, 64)

	x, err := cm.Alloc(1)
	require.NoError(t, err)
	y, err := cm.Alloc(1)
	require.NoError(t, err)
	require.Equal(t, x+types.PageSize, y, "runs must be adjacent for this test")

	require.NoError(t, cm.Free(x))

	snap := cm.Snapshot()
	assert.Equal(t, Frame{}, snap[cm.indexOf(t, x)])
	assert.Equal(t, Frame{Position: 1, Length: 1}, snap[cm.indexOf(t, y)], "neighbour must survive")
	checkInvariants(t, cm, map[types.Paddr]int{y: 1})
}

func TestFree_AdjacentRunsOfGrowingLength(t *testing.T) {
	// A 1-frame run followed by a 2-frame run reads 1, 1, 2 in the position
	// words; only the explicit length keeps the second run alive.
	cm := newBootedCoremap(t, 64)

	a, err := cm.Alloc(1)
	require.NoError(t, err)
	b, err := cm.Alloc(2)
	require.NoError(t, err)

	require.NoError(t, cm.Free(a))
	checkInvariants(t, cm, map[types.Paddr]int{b: 2})
}

func TestFree_Rejections(t *testing.T) {
	cm := newBootedCoremap(t, 64)
	run, err := cm.Alloc(3)
	require.NoError(t, err)
	base := cm.Stats().Base

	tests := []struct {
		name string
		pa   types.Paddr
	}{
		{"unaligned", run + 12},
		{"below tracked memory", base - types.PageSize},
		{"beyond tracked memory", base + 63*types.PageSize},
		{"middle of a run", run + types.PageSize},
		{"frame table", base},
		{"never allocated", run + 10*types.PageSize},
		{"zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := cm.Snapshot()
			err := cm.Free(tt.pa)
			assert.ErrorIs(t, err, ErrBadFree)
			assert.Equal(t, before, cm.Snapshot(), "rejected free must not touch the table")
		})
	}
}

func TestFree_DoubleFreeIsRejected(t *testing.T) {
	cm := newBootedCoremap(t, 64)
	a, err := cm.Alloc(2)
	require.NoError(t, err)

	require.NoError(t, cm.Free(a))
	b, err := cm.Alloc(1)
	require.NoError(t, err)
	require.Equal(t, a, b, "first fit reuses the freed frame")

	// A stale free of the old run's second frame must be rejected.
	err = cm.Free(a + types.PageSize)
	assert.ErrorIs(t, err, ErrBadFree)
	checkInvariants(t, cm, map[types.Paddr]int{b: 1})
}

func TestAlloc_OutOfMemoryIsRecoverable(t *testing.T) {
	cm := newBootedCoremap(t, 64)

	_, err := cm.Alloc(63)
	require.ErrorIs(t, err, ErrNoMemory)
	assert.True(t, errors.Is(err, types.ENOMEM))

	all, err := cm.Alloc(62)
	require.NoError(t, err)

	_, err = cm.Alloc(1)
	require.ErrorIs(t, err, ErrNoMemory)

	require.NoError(t, cm.Free(all))
	_, err = cm.Alloc(1)
	assert.NoError(t, err)
}

func TestContains(t *testing.T) {
	cm := newTestCoremap(t, 64)
	assert.False(t, cm.Contains(types.PageSize), "nothing is tracked in bump mode")

	require.NoError(t, cm.Bootstrap())
	base := cm.Stats().Base
	assert.True(t, cm.Contains(base))
	assert.True(t, cm.Contains(base+62*types.PageSize+100))
	assert.False(t, cm.Contains(base+63*types.PageSize))
	assert.False(t, cm.Contains(0))
}

func TestConcurrentAllocFree(t *testing.T) {
	cm := newBootedCoremap(t, 256)
	initial := cm.Stats().Free

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				pa, err := cm.Alloc(1 + (g+i)%3)
				if err != nil {
					continue
				}
				assert.NoError(t, cm.Free(pa))
			}
		}()
	}
	wg.Wait()

	stats := cm.Stats()
	assert.Equal(t, initial, stats.Free)
	assert.Zero(t, stats.Runs)
}

func TestAlloc_DuringBootstrapWaitsForTable(t *testing.T) {
	cm := newTestCoremap(t, 64)

	// Hold the table lock so Bootstrap stops after taking the memory from
	// RAM but before tracked mode is on.
	cm.mu.Lock()
	bootErr := make(chan error, 1)
	go func() { bootErr <- cm.Bootstrap() }()

	require.Eventually(t, func() bool {
		cm.stealMu.Lock()
		defer cm.stealMu.Unlock()
		return cm.booted
	}, 5*time.Second, time.Millisecond)
	require.False(t, cm.tracked.Load())

	_, err := cm.steal(1)
	require.ErrorIs(t, err, errHandedOff)

	type result struct {
		pa  types.Paddr
		err error
	}
	allocated := make(chan result, 1)
	go func() {
		pa, err := cm.Alloc(1)
		allocated <- result{pa, err}
	}()

	// The allocation waits for the table instead of failing.
	assert.Never(t, func() bool { return len(allocated) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	cm.mu.Unlock()
	require.NoError(t, <-bootErr)

	got := <-allocated
	require.NoError(t, got.err)
	assert.True(t, cm.Contains(got.pa))
	assert.Equal(t, 1, cm.Stats().Runs)
}

func TestAlloc_AfterFailedBootstrap(t *testing.T) {
	// One frame left after the kernel page cannot hold a table and a frame.
	cm := newTestCoremap(t, 2)
	require.ErrorIs(t, cm.Bootstrap(), ErrNoMemory)

	_, err := cm.Alloc(1)
	assert.ErrorIs(t, err, ErrNoMemory)
}
