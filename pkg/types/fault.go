package types

import "fmt"

// FaultType classifies a memory-access trap.
type FaultType int

const (
	// FaultRead is a read from an address with no valid translation.
	FaultRead FaultType = 0
	// FaultWrite is a write to an address with no valid translation.
	FaultWrite FaultType = 1
	// FaultReadOnly is a write to a page whose translation is not writable.
	FaultReadOnly FaultType = 2
)

func (f FaultType) String() string {
	switch f {
	case FaultRead:
		return "read"
	case FaultWrite:
		return "write"
	case FaultReadOnly:
		return "readonly"
	default:
		return fmt.Sprintf("FaultType(%d)", int(f))
	}
}
