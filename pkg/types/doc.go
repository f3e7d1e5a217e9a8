// Package types defines the shared vocabulary of the memory core: physical
// and virtual address types, the MIPS memory layout, fault kinds, errno
// values, and the configuration limits used by the allocator, the address
// space, and the fault handler.
//
// Design goals:
//   - Addresses are distinct named types so a physical address is never
//     passed where a virtual one is expected.
//   - Errors carry a stable errno category that callers test with errors.Is.
//
// This package has no dependencies beyond the standard library.
package types
