// Package spl models the interrupt priority level of the machine's single
// CPU.
//
// Raising the level to high is how kernel code gets exclusive use of
// per-CPU hardware such as the TLB: no trap can interleave until the level
// is restored. With exactly one CPU that is also mutual exclusion for the
// whole machine, which is the only reason it can stand in for a lock. A
// multiprocessor kernel needs a real cross-CPU protocol on top.
package spl

import (
	"sync"
	"sync/atomic"
)

// IPL is the interrupt priority level of one CPU. The zero value has
// interrupts enabled.
//
// High is not reentrant: code running at high level must not raise it
// again.
type IPL struct {
	mu   sync.Mutex
	high atomic.Bool
}

// High disables interrupts and returns a function that restores the
// previous level. Typical use:
//
//	restore := ipl.High()
//	defer restore()
func (p *IPL) High() (restore func()) {
	p.mu.Lock()
	p.high.Store(true)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.high.Store(false)
			p.mu.Unlock()
		})
	}
}

// Disabled reports whether interrupts are currently disabled.
func (p *IPL) Disabled() bool {
	return p.high.Load()
}
