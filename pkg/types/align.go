package types

// Page alignment helpers. Sizes and addresses are rounded in 64-bit
// arithmetic so the top page of the 32-bit address space does not wrap.

// RoundUp returns n aligned up to the next page boundary.
//
// Example:
//
//	RoundUp(1)    = 4096
//	RoundUp(4096) = 4096
//	RoundUp(4097) = 8192
func RoundUp(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// RoundDown returns n aligned down to a page boundary.
func RoundDown(n uint64) uint64 {
	return n &^ (PageSize - 1)
}

// PagesFor returns the number of pages needed to hold n bytes.
func PagesFor(n uint64) int {
	return int(RoundUp(n) / PageSize)
}

// PageAligned reports whether n sits on a page boundary.
func PageAligned(n uint64) bool {
	return n&(PageSize-1) == 0
}
