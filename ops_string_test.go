package x86stub

import "testing"

// REP MOVSD copies exactly ECX dwords and advances ESI/EDI by 4 each, not by
// one element too many or too few.
func TestRepMovsdExactIterationCount(t *testing.T) {
	emu, vmm, dec := mustNewEmulator(t, 0x1000)
	src, dstAddr := uint32(0x3000), uint32(0x4000)
	for i := uint32(0); i < 3; i++ {
		if err := vmm.Write32(src+i*4, 0x1000+i); err != nil {
			t.Fatalf("seed src: %v", err)
		}
	}
	emu.SetReg32(RegESI, src)
	emu.SetReg32(RegEDI, dstAddr)
	emu.SetReg32(RegECX, 3)
	emu.prefixREPE = true

	instr := DecodedInstruction{
		Opcode: OpMOVS, Len: 1,
		Ops: [3]Operand{
			MemoryOperand(SizeDword, gpr32Views[RegEDI], NoneView, 0, 0),
			MemoryOperand(SizeDword, gpr32Views[RegESI], NoneView, 0, 0),
		},
	}
	dec.at(emu.EIP(), instr)
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}

	if emu.GetReg32(RegECX) != 0 {
		t.Fatalf("ECX = %d after REP MOVSD of 3, want 0", emu.GetReg32(RegECX))
	}
	if emu.GetReg32(RegESI) != src+12 || emu.GetReg32(RegEDI) != dstAddr+12 {
		t.Fatalf("ESI=%#x EDI=%#x, want both advanced by exactly 12 bytes", emu.GetReg32(RegESI), emu.GetReg32(RegEDI))
	}
	for i := uint32(0); i < 3; i++ {
		v, err := vmm.Read32(dstAddr + i*4)
		if err != nil {
			t.Fatalf("read dst: %v", err)
		}
		if v != 0x1000+i {
			t.Fatalf("dst[%d] = %#x, want %#x", i, v, 0x1000+i)
		}
	}
}

// A REP-prefixed string op with ECX already zero performs zero iterations.
func TestRepWithZeroCounterIsNoOp(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEDI, 0x4000)
	emu.SetReg32(RegEAX, 0x7)
	emu.SetReg32(RegECX, 0)
	emu.prefixREPE = true

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpSTOS, Len: 1,
		Ops: [3]Operand{MemoryOperand(SizeDword, gpr32Views[RegEDI], NoneView, 0, 0)},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegEDI) != 0x4000 {
		t.Fatal("EDI moved despite a zero REP counter")
	}
}

// REPE SCASD stops as soon as ZF clears (a mismatch found), even if the
// counter hasn't reached zero.
func TestRepeScasdStopsOnMismatch(t *testing.T) {
	emu, vmm, dec := mustNewEmulator(t, 0x1000)
	base := uint32(0x5000)
	if err := vmm.Write32(base+0, 7); err != nil {
		t.Fatal(err)
	}
	if err := vmm.Write32(base+4, 7); err != nil {
		t.Fatal(err)
	}
	if err := vmm.Write32(base+8, 9); err != nil { // mismatch on the third element
		t.Fatal(err)
	}
	emu.SetReg32(RegEDI, base)
	emu.SetReg32(RegEAX, 7)
	emu.SetReg32(RegECX, 5)
	emu.prefixREPE = true

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpSCAS, Len: 1,
		Ops: [3]Operand{MemoryOperand(SizeDword, gpr32Views[RegEDI], NoneView, 0, 0)},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegECX) != 2 {
		t.Fatalf("ECX = %d, want 2 (stopped after the third compare found a mismatch)", emu.GetReg32(RegECX))
	}
	if emu.GetReg32(RegEDI) != base+12 {
		t.Fatalf("EDI = %#x, want %#x (three dwords scanned)", emu.GetReg32(RegEDI), base+12)
	}
}

// DF reverses the index-advance direction.
func TestStosdRespectsDirectionFlag(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEDI, 0x6000)
	emu.SetReg32(RegEAX, 0xFF)
	f := emu.Flags()
	f.set(FlagDF, true)
	emu.SetFlags(f)

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpSTOS, Len: 1,
		Ops: [3]Operand{MemoryOperand(SizeDword, gpr32Views[RegEDI], NoneView, 0, 0)},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegEDI) != 0x6000-4 {
		t.Fatalf("EDI = %#x after STOSD with DF=1, want %#x", emu.GetReg32(RegEDI), 0x6000-4)
	}
}
