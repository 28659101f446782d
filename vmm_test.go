package x86stub

import "encoding/binary"

// testVMM is a minimal in-package VMM double for white-box unit tests that
// need to construct an *Emulator directly (register aliasing, flags, the
// cache, individual opcode handlers) without pulling in the fakevmm/
// fakedecoder packages, which import this package and would otherwise
// create an import cycle from an in-package test file.
type testVMM struct {
	mem     []byte
	next    uint32
	imports map[uint32]ImportDesc
}

func newTestVMM(size uint32) *testVMM {
	return &testVMM{mem: make([]byte, size), imports: make(map[uint32]ImportDesc)}
}

func (v *testVMM) Alloc(size uint32) (uint32, error) {
	base := v.next
	v.next += (size + 0xFFF) &^ 0xFFF
	return base, nil
}

func (v *testVMM) RVA2VA(rva uint32) uint32 { return rva }

func (v *testVMM) Read8(addr uint32) (byte, error)  { return v.mem[addr], nil }
func (v *testVMM) Read16(addr uint32) (uint16, error) {
	return binary.LittleEndian.Uint16(v.mem[addr:]), nil
}
func (v *testVMM) Read32(addr uint32) (uint32, error) {
	return binary.LittleEndian.Uint32(v.mem[addr:]), nil
}
func (v *testVMM) Write8(addr uint32, val byte) error { v.mem[addr] = val; return nil }
func (v *testVMM) Write16(addr uint32, val uint16) error {
	binary.LittleEndian.PutUint16(v.mem[addr:], val)
	return nil
}
func (v *testVMM) Write32(addr uint32, val uint32) error {
	binary.LittleEndian.PutUint32(v.mem[addr:], val)
	return nil
}

func (v *testVMM) GetImport(addr uint32) (ImportDesc, bool) {
	d, ok := v.imports[addr]
	return d, ok
}

// testDecoder lets a test hand-construct the DecodedInstruction for a given
// pc rather than encoding real x86 bytes, by registering a fixed table.
type testDecoder struct {
	byPC map[uint32]DecodedInstruction
}

func newTestDecoder() *testDecoder { return &testDecoder{byPC: make(map[uint32]DecodedInstruction)} }

func (d *testDecoder) at(pc uint32, instr DecodedInstruction) {
	d.byPC[pc] = instr
}

func (d *testDecoder) Decode(vmm VMM, pc uint32) (DecodedInstruction, error) {
	instr, ok := d.byPC[pc]
	if !ok {
		return DecodedInstruction{}, errNoInstruction
	}
	return instr, nil
}

var errNoInstruction = fmtErrorf("testDecoder: no instruction registered at pc")

func fmtErrorf(s string) error { return &simpleErr{s} }

type simpleErr struct{ s string }

func (e *simpleErr) Error() string { return e.s }

func newEmulatorForTest(t interface{ Fatalf(string, ...any) }, stackSize uint32) (*Emulator, *testVMM, *testDecoder) {
	vmm := newTestVMM(1 << 16)
	dec := newTestDecoder()
	// Reserve a low region before the stack allocation so tests that poke
	// memory operands at small fixed addresses (0, 4, 8, ...) don't share
	// those bytes with the stack, which NewEmulator would otherwise place
	// at VA 0.
	imageBase, err := vmm.Alloc(0x1000)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	emu, err := NewEmulator(vmm, dec, PEOptionalHeader{AddressOfEntryPoint: imageBase, SizeOfStackReserve: stackSize})
	if err != nil {
		t.Fatalf("NewEmulator: %v", err)
	}
	return emu, vmm, dec
}
