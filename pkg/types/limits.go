package types

// ============================================================================
// Memory Layout Limits
// ============================================================================
// Defaults for the simulated machine. Each can be overridden through the
// machine configuration; these are the values the kernel was built around.

const (
	// DefaultStackPages is the number of pages in every user stack (48KB).
	DefaultStackPages = 12

	// DefaultMaxRegions is how many non-stack regions an address space
	// accepts (code and data).
	DefaultMaxRegions = 2

	// DefaultNumTLB is the number of translation cache slots.
	DefaultNumTLB = 64

	// DefaultRAMSize is the installed memory of the simulated machine (4MB).
	DefaultRAMSize = 4 << 20

	// DefaultKernelReserved is the memory occupied by the kernel image and
	// boot data below the first free physical address (256KB).
	DefaultKernelReserved = 256 << 10
)
