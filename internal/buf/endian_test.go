package buf

import "testing"

func TestEndianHelpers(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89}

	if got := U32LE(data); got != 0x67452301 {
		t.Fatalf("U32LE = 0x%x, want 0x67452301", got)
	}

	out := make([]byte, 4)
	if !PutU32LE(out, 0xdeadbeef) {
		t.Fatalf("PutU32LE should succeed on a 4-byte buffer")
	}
	if got := U32LE(out); got != 0xdeadbeef {
		t.Fatalf("round trip = 0x%x, want 0xdeadbeef", got)
	}

	short := []byte{0xAA}
	if U32LE(short) != 0 {
		t.Fatalf("short read should return 0")
	}
	if PutU32LE(short, 1) || short[0] != 0xAA {
		t.Fatalf("short write should fail without touching the buffer")
	}
}
