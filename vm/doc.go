// Package vm is the kernel memory context of one simulated machine.
//
// A VM owns the installed RAM, the coremap that allocates its frames, the
// CPU's translation cache and the interrupt level that guards it. It hands
// out kernel pages, creates address spaces wired to its frames, tracks the
// current process and resolves translation faults for it.
//
// Boot order:
//
//	v, err := vm.New(config.Default())
//	// early kernel allocations are served by bump allocation here
//	err = v.Bootstrap()
//	// every later allocation goes through the coremap
//
// The machine has exactly one CPU. Requests to invalidate translations on
// another CPU fail with ErrNoCrossCPU.
package vm
