package x86stub

import "testing"

// opSUB/opCMP share addsubOp; CMP must discard the result but still set
// flags as a subtract would.
func TestCMPDoesNotWriteBackButSetsFlags(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEAX, 5)
	emu.SetReg32(RegEBX, 5)

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpCMP, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegEAX) != 5 {
		t.Fatalf("EAX = %d after CMP, want unchanged (5)", emu.GetReg32(RegEAX))
	}
	if !emu.Flags().ZF() {
		t.Fatal("expected ZF set: 5 - 5 == 0")
	}
}

// opAND/opOR/opXOR write back; opTEST (the supplemented opcode reusing the
// same flags path) does not.
func TestLogicalOpsWriteBackExceptTEST(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEAX, 0xF0)
	emu.SetReg32(RegEBX, 0x0F)

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpAND, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("AND step: %v", err)
	}
	if emu.GetReg32(RegEAX) != 0 {
		t.Fatalf("EAX = %#x after AND 0xF0,0x0F, want 0", emu.GetReg32(RegEAX))
	}

	emu.SetReg32(RegEAX, 0xF0)
	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpTEST, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("TEST step: %v", err)
	}
	if emu.GetReg32(RegEAX) != 0xF0 {
		t.Fatalf("EAX = %#x after TEST, want unchanged (0xF0)", emu.GetReg32(RegEAX))
	}
	if !emu.Flags().ZF() {
		t.Fatal("expected ZF set: 0xF0 & 0x0F == 0")
	}
}

// SBB, like ADC, folds CF into the first operand before subtracting.
func TestSBBFoldsCarryIntoFirstOperand(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEAX, 5)
	emu.SetReg32(RegEBX, 3)
	f := emu.Flags()
	f.set(FlagCF, true)
	emu.SetFlags(f)

	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpSBB, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	// a folds to 5+1=6 first, then r = 6 - 3 = 3.
	if emu.GetReg32(RegEAX) != 3 {
		t.Fatalf("EAX = %d after SBB, want 3 ((5+CF)-3)", emu.GetReg32(RegEAX))
	}
}

// LEA writes the computed address, not the memory contents, and requires
// its source to be a memory operand.
func TestLEAComputesAddressNotContents(t *testing.T) {
	emu, vmm, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEBX, 0x1000)
	if err := vmm.Write32(0x1004, 0xCAFEBABE); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	mem := MemoryOperand(SizeDword, gpr32Views[RegEBX], NoneView, 0, 4)
	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpLEA, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), mem},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegEAX) != 0x1004 {
		t.Fatalf("EAX = %#x after LEA, want 0x1004 (the computed address)", emu.GetReg32(RegEAX))
	}
}

func TestLEARejectsNonMemorySource(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpLEA, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	err := emu.Step()
	if err == nil {
		t.Fatal("expected an error: LEA source is not a memory operand")
	}
}

// XCHG cross-writes both operands.
func TestXCHGSwapsOperands(t *testing.T) {
	emu, _, dec := mustNewEmulator(t, 0x1000)
	emu.SetReg32(RegEAX, 1)
	emu.SetReg32(RegEBX, 2)
	dec.at(emu.EIP(), DecodedInstruction{
		Opcode: OpXCHG, Len: 1,
		Ops: [3]Operand{RegisterOperand(gpr32Views[RegEAX]), RegisterOperand(gpr32Views[RegEBX])},
	})
	if err := emu.Step(); err != nil {
		t.Fatalf("Step(): %v", err)
	}
	if emu.GetReg32(RegEAX) != 2 || emu.GetReg32(RegEBX) != 1 {
		t.Fatalf("EAX=%d EBX=%d after XCHG, want 2/1", emu.GetReg32(RegEAX), emu.GetReg32(RegEBX))
	}
}
