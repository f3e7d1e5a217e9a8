package coremap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/vmcore/internal/buf"
	"github.com/joshuapare/vmcore/internal/logger"
	"github.com/joshuapare/vmcore/internal/ram"
	"github.com/joshuapare/vmcore/pkg/types"
)

// entrySize is the size of one frame table entry: position word + length word.
const entrySize = 8

// Coremap is the physical frame allocator of one boot.
type Coremap struct {
	ram *ram.RAM

	// stealMu serializes bump allocation and the hand-off in Bootstrap.
	stealMu sync.Mutex
	booted  bool
	ready   chan struct{} // closed when Bootstrap finishes, either way

	// mu guards the frame table and the counters below it.
	mu      sync.Mutex
	tracked atomic.Bool

	base     types.Paddr // physical address of frame 0
	nframes  int
	reserved int    // frames holding the table itself
	table    []byte // aliases RAM at base
	free     int
	runs     int // live runs, not counting the table's own
}

// Frame is one frame table entry as seen by Snapshot.
type Frame struct {
	Position uint32 // 1-based position in its run, 0 when free
	Length   uint32 // run length on the first frame of a run, else 0
}

// Stats summarizes frame usage.
type Stats struct {
	Tracked  bool        `json:"tracked"`
	Base     types.Paddr `json:"base"`
	Frames   int         `json:"frames"`
	Reserved int         `json:"reserved"`
	Free     int         `json:"free"`
	Used     int         `json:"used"`
	Runs     int         `json:"runs"`
}

// New returns a coremap in bump mode over mem.
func New(mem *ram.RAM) *Coremap {
	return &Coremap{ram: mem, ready: make(chan struct{})}
}

// Bootstrap builds the frame table over the memory RAM has not handed out
// yet and switches the allocator to tracked mode. It must run exactly once,
// before any allocation that should ever be freed.
func (c *Coremap) Bootstrap() error {
	c.stealMu.Lock()
	if c.booted {
		c.stealMu.Unlock()
		return ErrAlreadyBootstrapped
	}
	c.booted = true
	lo, hi := c.ram.GetSize()
	c.stealMu.Unlock()
	defer close(c.ready)

	base := types.RoundUp(uint64(lo))
	top := types.RoundDown(uint64(hi))
	if top <= base {
		return fmt.Errorf("%w: no memory left at bootstrap", ErrNoMemory)
	}

	nframes := int((top - base) / types.PageSize)
	tableBytes, ok := buf.MulOverflowSafe(nframes, entrySize)
	if !ok {
		return fmt.Errorf("coremap: frame table size overflows for %d frames", nframes)
	}
	reserved := types.PagesFor(uint64(tableBytes))
	if reserved >= nframes {
		return fmt.Errorf("%w: %d frames cannot hold a %d-frame table", ErrNoMemory, nframes, reserved)
	}

	table := c.ram.Bytes(types.Paddr(base), reserved*types.PageSize)
	if _, err := buf.CheckTableBounds(len(table), 0, nframes, entrySize); err != nil {
		return fmt.Errorf("coremap: frame table: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.base = types.Paddr(base)
	c.nframes = nframes
	c.reserved = reserved
	c.table = table
	clear(c.table)
	c.markRun(0, reserved)
	c.runs = 0
	c.free = nframes - reserved
	c.tracked.Store(true)

	logger.Info("coremap: bootstrap",
		"base", c.base,
		"top", types.Paddr(top),
		"frames", nframes,
		"table_frames", reserved)
	return nil
}

// Alloc returns the physical base of npages contiguous frames.
//
// In tracked mode it picks the lowest-addressed free run that is long
// enough and returns ErrNoMemory when there is none. In bump mode the pages
// are never reclaimed.
func (c *Coremap) Alloc(npages int) (types.Paddr, error) {
	if npages < 1 {
		return 0, ErrBadCount
	}
	if !c.tracked.Load() {
		pa, err := c.steal(npages)
		if !errors.Is(err, errHandedOff) {
			return pa, err
		}
		// Bootstrap owns the memory but the table is not up yet.
		<-c.ready
		if !c.tracked.Load() {
			return 0, fmt.Errorf("%w: bootstrap failed", ErrNoMemory)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.findRun(npages)
	if start < 0 {
		logger.Debug("coremap: no free run", "npages", npages, "free", c.free)
		return 0, ErrNoMemory
	}
	c.markRun(start, npages)
	c.free -= npages
	c.runs++

	pa := c.frameAddr(start)
	logger.Debug("coremap: alloc", "npages", npages, "frame", start, "paddr", pa)
	return pa, nil
}

// Free releases the run that starts at pa. pa must be exactly an address a
// previous tracked Alloc returned; anything else returns ErrBadFree and
// leaves the table untouched. Frees in bump mode are ignored.
func (c *Coremap) Free(pa types.Paddr) error {
	if !c.tracked.Load() {
		logger.Debug("coremap: free before bootstrap leaks", "paddr", pa)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.frameIndex(pa)
	if !ok || idx < c.reserved || c.position(idx) != 1 || c.runLength(idx) == 0 {
		return fmt.Errorf("%w: %s", ErrBadFree, pa)
	}

	n := int(c.runLength(idx))
	for k := range n {
		c.setEntry(idx+k, 0, 0)
	}
	c.free += n
	c.runs--

	logger.Debug("coremap: free", "npages", n, "frame", idx, "paddr", pa)
	return nil
}

// Contains reports whether pa lies in tracked memory.
func (c *Coremap) Contains(pa types.Paddr) bool {
	if !c.tracked.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.frameIndex(pa.Page())
	return ok
}

// Stats returns the current frame usage. Before Bootstrap only Tracked is
// meaningful.
func (c *Coremap) Stats() Stats {
	if !c.tracked.Load() {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Tracked:  true,
		Base:     c.base,
		Frames:   c.nframes,
		Reserved: c.reserved,
		Free:     c.free,
		Used:     c.nframes - c.free,
		Runs:     c.runs,
	}
}

// Snapshot returns a copy of the frame table, indexed by frame number.
func (c *Coremap) Snapshot() []Frame {
	if !c.tracked.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, c.nframes)
	for i := range out {
		out[i] = Frame{Position: c.position(i), Length: c.runLength(i)}
	}
	return out
}

// steal is the bump-mode allocation path.
func (c *Coremap) steal(npages int) (types.Paddr, error) {
	c.stealMu.Lock()
	defer c.stealMu.Unlock()

	if c.booted {
		return 0, errHandedOff
	}
	pa := c.ram.StealMem(npages)
	if pa == 0 {
		return 0, fmt.Errorf("%w: cannot steal %d pages", ErrNoMemory, npages)
	}
	logger.Debug("coremap: steal", "npages", npages, "paddr", pa)
	return pa, nil
}

// findRun returns the first frame index starting a free run of n frames,
// or -1.
func (c *Coremap) findRun(n int) int {
	for i := 0; i+n <= c.nframes; {
		if c.position(i) != 0 {
			i++
			continue
		}
		j := i
		for j < i+n && c.position(j) == 0 {
			j++
		}
		if j == i+n {
			return i
		}
		// No run starting before j can reach n frames; j itself is in use.
		i = j + 1
	}
	return -1
}

func (c *Coremap) markRun(start, n int) {
	for k := range n {
		c.setEntry(start+k, uint32(k+1), 0)
	}
	c.setEntry(start, 1, uint32(n))
}

func (c *Coremap) frameAddr(idx int) types.Paddr {
	return c.base + types.Paddr(idx*types.PageSize)
}

func (c *Coremap) frameIndex(pa types.Paddr) (int, bool) {
	if pa < c.base || !types.PageAligned(uint64(pa)) {
		return 0, false
	}
	idx := int((pa - c.base) / types.PageSize)
	if idx >= c.nframes {
		return 0, false
	}
	return idx, true
}

func (c *Coremap) position(idx int) uint32 {
	return buf.U32LE(c.table[idx*entrySize:])
}

func (c *Coremap) runLength(idx int) uint32 {
	return buf.U32LE(c.table[idx*entrySize+4:])
}

func (c *Coremap) setEntry(idx int, pos, length uint32) {
	off := idx * entrySize
	buf.PutU32LE(c.table[off:], pos)
	buf.PutU32LE(c.table[off+4:], length)
}
