package fakevmm

import (
	"testing"

	x86stub "github.com/hollow-stub/x86stub"
)

func TestAllocIsPageAlignedAndBumps(t *testing.T) {
	v := New(1 << 16)
	a, err := v.Alloc(1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := v.Alloc(1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a != 0 {
		t.Fatalf("first Alloc base = %#x, want 0", a)
	}
	if b != pageSize {
		t.Fatalf("second Alloc base = %#x, want %#x (page-aligned up)", b, pageSize)
	}
}

func TestAllocOutOfSpace(t *testing.T) {
	v := New(pageSize)
	if _, err := v.Alloc(pageSize + 1); err == nil {
		t.Fatal("expected an out-of-space error")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	v := New(64)
	if err := v.Write32(0, 0xDEADBEEF); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	got, err := v.Read32(0)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("Read32 = %#x, want 0xdeadbeef", got)
	}
	lo, err := v.Read16(0)
	if err != nil {
		t.Fatalf("Read16: %v", err)
	}
	if lo != 0xBEEF {
		t.Fatalf("Read16 = %#x, want 0xbeef (little-endian)", lo)
	}
}

func TestOutOfBoundsAccessErrors(t *testing.T) {
	v := New(4)
	if _, err := v.Read32(2); err == nil {
		t.Fatal("expected an out-of-range error reading past the end")
	}
}

func TestImportRegistration(t *testing.T) {
	v := New(64)
	if _, ok := v.GetImport(0x1000); ok {
		t.Fatal("GetImport reported a hit before any import was registered")
	}
	v.RegisterImport(0x1000, x86stub.NewGenericStdcallImport("test", 4, nil))
	d, ok := v.GetImport(0x1000)
	if !ok || d.ArgBytes != 4 {
		t.Fatalf("GetImport = %+v, %v; want a registered import with ArgBytes=4", d, ok)
	}
}
