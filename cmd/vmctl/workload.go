package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/joshuapare/vmcore/pkg/types"
	"github.com/joshuapare/vmcore/vm"
	"github.com/joshuapare/vmcore/vm/coremap"
)

// workload drives a random mix of kernel page allocations and frees.
type workload struct {
	v        *vm.VM
	rng      *rand.Rand
	maxPages int
	check    bool

	live  map[types.Vaddr]int
	order []types.Vaddr // live runs, for deterministic victim choice

	Steps    int `json:"steps"`
	Allocs   int `json:"allocs"`
	Frees    int `json:"frees"`
	OOM      int `json:"oom"`
	PeakUsed int `json:"peak_used"`
}

func newWorkload(v *vm.VM, seed uint64, maxPages int, check bool) *workload {
	return &workload{
		v:        v,
		rng:      rand.New(rand.NewPCG(seed, seed)),
		maxPages: maxPages,
		check:    check,
		live:     make(map[types.Vaddr]int),
	}
}

// run performs steps operations, verifying the frame table after each one
// when checking is on.
func (w *workload) run(steps int) error {
	for range steps {
		if err := w.step(); err != nil {
			return fmt.Errorf("step %d: %w", w.Steps, err)
		}
		if w.check {
			if err := w.verify(); err != nil {
				return fmt.Errorf("step %d: %w", w.Steps, err)
			}
		}
	}
	return nil
}

func (w *workload) step() error {
	w.Steps++
	if len(w.order) > 0 && w.rng.IntN(2) == 0 {
		i := w.rng.IntN(len(w.order))
		va := w.order[i]
		if err := w.v.FreeKPages(va); err != nil {
			return err
		}
		w.order[i] = w.order[len(w.order)-1]
		w.order = w.order[:len(w.order)-1]
		delete(w.live, va)
		w.Frees++
		return nil
	}

	n := 1 + w.rng.IntN(w.maxPages)
	va, err := w.v.AllocKPages(n)
	if errors.Is(err, coremap.ErrNoMemory) {
		w.OOM++
		return nil
	}
	if err != nil {
		return err
	}
	w.live[va] = n
	w.order = append(w.order, va)
	w.Allocs++
	w.PeakUsed = max(w.PeakUsed, w.v.Stats().Coremap.Used)
	return nil
}

// drain frees every live run.
func (w *workload) drain() error {
	for _, va := range w.order {
		if err := w.v.FreeKPages(va); err != nil {
			return err
		}
		w.Frees++
	}
	w.order = w.order[:0]
	clear(w.live)
	return nil
}

// verify checks that the frame table holds exactly the live runs: each is
// numbered 1..n with its length on the first frame, no two overlap, and
// free plus used frames add up to the total.
func (w *workload) verify() error {
	stats := w.v.Stats().Coremap
	snap := w.v.Coremap().Snapshot()
	owned := make([]bool, len(snap))
	for i := range stats.Reserved {
		owned[i] = true
	}

	held := 0
	for va, n := range w.live {
		pa := types.KvaddrToPaddr(va)
		start := int(pa-stats.Base) / types.PageSize
		if start < stats.Reserved || start+n > len(snap) {
			return fmt.Errorf("run %s outside tracked memory", pa)
		}
		if got := snap[start].Length; got != uint32(n) {
			return fmt.Errorf("run %s: recorded length %d, want %d", pa, got, n)
		}
		for k := range n {
			if owned[start+k] {
				return fmt.Errorf("frame %d belongs to two runs", start+k)
			}
			owned[start+k] = true
			if got := snap[start+k].Position; got != uint32(k+1) {
				return fmt.Errorf("frame %d of run %s: position %d, want %d", start+k, pa, got, k+1)
			}
		}
		held += n
	}

	for i, f := range snap {
		if !owned[i] && f != (coremap.Frame{}) {
			return fmt.Errorf("frame %d marked %+v but belongs to no run", i, f)
		}
	}
	if stats.Free+held+stats.Reserved != stats.Frames {
		return fmt.Errorf("free %d + held %d + table %d != %d frames",
			stats.Free, held, stats.Reserved, stats.Frames)
	}
	return nil
}
