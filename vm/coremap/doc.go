// Package coremap provides the physical frame allocator.
//
// # Overview
//
// The coremap tracks every page frame of physical memory as free or in use
// and hands out runs of contiguous frames. It has two modes:
//
//   - Bump mode, before Bootstrap: pages come from the bottom of free RAM
//     through ram.StealMem and are never reclaimed. This is how the kernel
//     allocates before the frame table exists.
//   - Tracked mode, after Bootstrap: a frame table laid over the first
//     frames of free RAM records the state of every frame, and Alloc does a
//     first-fit scan for a free run.
//
// # Frame Table
//
// Each frame has an 8-byte entry of two little-endian words:
//
//	word 0: position of the frame in its run, 1-based (0 = free)
//	word 1: length of the run, set on the run's first frame only
//
// A run of n frames therefore reads 1, 2, ..., n in word 0, with n in word 1
// of the first entry. Free reads the length from the first entry, so two
// independent runs that happen to sit next to each other are never merged.
// Free also refuses any address that is not the first frame of a live run,
// which makes double frees harmless.
//
// The frames holding the table itself form a reserved run at the bottom of
// tracked memory that can never be freed.
//
// # Usage Example
//
//	cm := coremap.New(mem)
//	early, err := cm.Alloc(2) // bump mode
//	...
//	if err := cm.Bootstrap(); err != nil {
//	    return err
//	}
//	pa, err := cm.Alloc(4) // first fit
//	if errors.Is(err, types.ENOMEM) {
//	    // recoverable: no free run of 4 frames
//	}
//	err = cm.Free(pa)
//
// # Thread Safety
//
// Coremap is safe for concurrent use. Tracked operations hold one mutex for
// the whole scan-and-mark or scan-and-clear; bump allocation holds a
// separate one. The two are never held together.
package coremap
