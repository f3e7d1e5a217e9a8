// Package addrspace implements per-process address spaces.
//
// An address space is a short ordered list of regions (normally code then
// data) plus a fixed-size stack ending at types.UserStack. Every page is
// backed by its own physical frame, allocated eagerly by PrepareLoad and
// owned by the space until Destroy. There is no paging and no sharing:
// Copy duplicates every page.
//
// Program loading calls, in order:
//
//	as := vm.NewAddrSpace()
//	as.DefineRegion(textBase, textSize, true, false, true)
//	as.DefineRegion(dataBase, dataSize, true, true, false)
//	as.PrepareLoad()
//	// ... copy the segments in ...
//	as.CompleteLoad()
//	sp, err := as.DefineStack()
//
// Permission flags are recorded but not enforced. Every page is writable
// until CompleteLoad; from then on pages of the first region (the code
// region) translate read-only.
//
// An AddressSpace belongs to one process and is not safe for concurrent
// use.
package addrspace
