package x86stub

import "fmt"

func (e *Emulator) initHandlers() {
	e.handlers = map[Opcode]func(*Emulator, DecodedInstruction) error{
		OpMOV:    (*Emulator).opMOV,
		OpPUSH:   (*Emulator).opPUSH,
		OpPOP:    (*Emulator).opPOP,
		OpINC:    (*Emulator).opINC,
		OpDEC:    (*Emulator).opDEC,
		OpADD:    (*Emulator).opADD,
		OpSUB:    (*Emulator).opSUB,
		OpADC:    (*Emulator).opADC,
		OpSBB:    (*Emulator).opSBB,
		OpCMP:    (*Emulator).opCMP,
		OpAND:    (*Emulator).opAND,
		OpOR:     (*Emulator).opOR,
		OpXOR:    (*Emulator).opXOR,
		OpTEST:   (*Emulator).opTEST,
		OpLEA:    (*Emulator).opLEA,
		OpXCHG:   (*Emulator).opXCHG,
		OpPUSHAD: (*Emulator).opPUSHAD,
		OpPOPAD:  (*Emulator).opPOPAD,
		OpCLC:    (*Emulator).opCLC,
		OpSTC:    (*Emulator).opSTC,
		OpCLD:    (*Emulator).opCLD,
		OpSTD:    (*Emulator).opSTD,
		OpNOP:    (*Emulator).opNOP,

		OpSHL: (*Emulator).opSHL,
		OpSHR: (*Emulator).opSHR,
		OpROL: (*Emulator).opROL,
		OpROR: (*Emulator).opROR,

		OpLODS: (*Emulator).opLODS,
		OpSTOS: (*Emulator).opSTOS,
		OpMOVS: (*Emulator).opMOVS,
		OpSCAS: (*Emulator).opSCAS,

		OpJMP: (*Emulator).opJMP,
		OpJO:  jccHandler(func(f *Flags) bool { return f.OF() }),
		OpJNO: jccHandler(func(f *Flags) bool { return !f.OF() }),
		OpJC:  jccHandler(func(f *Flags) bool { return f.CF() }),
		OpJNC: jccHandler(func(f *Flags) bool { return !f.CF() }),
		OpJZ:  jccHandler(func(f *Flags) bool { return f.ZF() }),
		OpJNZ: jccHandler(func(f *Flags) bool { return !f.ZF() }),
		OpJBE: jccHandler(func(f *Flags) bool { return f.CF() || f.ZF() }),
		OpJA:  jccHandler(func(f *Flags) bool { return !f.CF() && !f.ZF() }),
		OpJS:  jccHandler(func(f *Flags) bool { return f.SF() }),
		OpJNS: jccHandler(func(f *Flags) bool { return !f.SF() }),
		OpJP:  jccHandler(func(f *Flags) bool { return f.PF() }),
		OpJNP: jccHandler(func(f *Flags) bool { return !f.PF() }),
		OpJL:  jccHandler(func(f *Flags) bool { return f.SF() != f.OF() }),
		OpJGE: jccHandler(func(f *Flags) bool { return f.SF() == f.OF() }),
		OpJLE: jccHandler(func(f *Flags) bool { return f.ZF() || f.SF() != f.OF() }),
		OpJG:  jccHandler(func(f *Flags) bool { return !f.ZF() && f.SF() == f.OF() }),
		OpLOOP: (*Emulator).opLOOP,
		OpCALL: (*Emulator).opCALL,
		OpRET:  (*Emulator).opRET,
	}
}

// opMOV: dst <- src. No flags.
func (e *Emulator) opMOV(instr DecodedInstruction) error {
	v, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	return e.writeOperand(instr.Ops[0], v)
}

// opPUSH: ESP -= size; memwrite(ESP, src). size is 2 under the operand-size
// override, else 4.
func (e *Emulator) opPUSH(instr DecodedInstruction) error {
	v, err := e.readOperand(instr.Ops[0])
	if err != nil {
		return err
	}
	if instr.OpSize16 {
		return e.push16(uint16(v))
	}
	return e.push32(v)
}

// opPOP: dst <- memread(ESP, size); ESP += size.
func (e *Emulator) opPOP(instr DecodedInstruction) error {
	var v uint32
	var err error
	if instr.OpSize16 {
		var v16 uint16
		v16, err = e.pop16()
		v = uint32(v16)
	} else {
		v, err = e.pop32()
	}
	if err != nil {
		return err
	}
	return e.writeOperand(instr.Ops[0], v)
}

// opINC/opDEC: dst +/- 1; flags via the inc/dec calculator (CF preserved).
func (e *Emulator) opINC(instr DecodedInstruction) error {
	op := instr.Ops[0]
	a, err := e.readOperand(op)
	if err != nil {
		return err
	}
	d := operandWidth(op)
	r := (a + 1) & d.Mask
	e.flags.calcFlagsIncDec(a, r, d, false)
	return e.writeOperand(op, r)
}

func (e *Emulator) opDEC(instr DecodedInstruction) error {
	op := instr.Ops[0]
	a, err := e.readOperand(op)
	if err != nil {
		return err
	}
	d := operandWidth(op)
	r := (a - 1) & d.Mask
	e.flags.calcFlagsIncDec(a, r, d, true)
	return e.writeOperand(op, r)
}

// addsubOp implements the shared ADD/SUB/ADC/SBB/CMP shape: read both
// operands, compute flags against the destination's width descriptor, write
// back unless discard is set (CMP).
func (e *Emulator) addsubOp(instr DecodedInstruction, isSub, discard bool, foldCarryIntoA bool) error {
	dst, src := instr.Ops[0], instr.Ops[1]
	a, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	b, err := e.readOperand(src)
	if err != nil {
		return err
	}
	d := operandWidth(dst)

	// ADC/SBB: CF folds into the first operand before the flag calculator
	// runs (§4.5, §9) — an intentional deviation from Intel's three-operand
	// overflow rule, preserved verbatim because the source behaves this way.
	if foldCarryIntoA {
		if e.flags.CF() {
			a = (a + 1) & d.Mask
		}
	}

	var r uint32
	if isSub {
		r = (a - b) & d.Mask
	} else {
		r = (a + b) & d.Mask
	}
	e.flags.calcFlagsAddSub(a, b, r, d, isSub)
	if discard {
		return nil
	}
	return e.writeOperand(dst, r)
}

func (e *Emulator) opADD(instr DecodedInstruction) error { return e.addsubOp(instr, false, false, false) }
func (e *Emulator) opSUB(instr DecodedInstruction) error { return e.addsubOp(instr, true, false, false) }
func (e *Emulator) opADC(instr DecodedInstruction) error { return e.addsubOp(instr, false, false, true) }
func (e *Emulator) opSBB(instr DecodedInstruction) error { return e.addsubOp(instr, true, false, true) }
func (e *Emulator) opCMP(instr DecodedInstruction) error { return e.addsubOp(instr, true, true, false) }

// logicOp implements the shared AND/OR/XOR/TEST shape.
func (e *Emulator) logicOp(instr DecodedInstruction, combine func(a, b uint32) uint32, discard bool) error {
	dst, src := instr.Ops[0], instr.Ops[1]
	a, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	b, err := e.readOperand(src)
	if err != nil {
		return err
	}
	d := operandWidth(dst)
	r := combine(a, b) & d.Mask
	e.flags.calcFlagsTest(r, d)
	if discard {
		return nil
	}
	return e.writeOperand(dst, r)
}

func (e *Emulator) opAND(instr DecodedInstruction) error {
	return e.logicOp(instr, func(a, b uint32) uint32 { return a & b }, false)
}
func (e *Emulator) opOR(instr DecodedInstruction) error {
	return e.logicOp(instr, func(a, b uint32) uint32 { return a | b }, false)
}
func (e *Emulator) opXOR(instr DecodedInstruction) error {
	return e.logicOp(instr, func(a, b uint32) uint32 { return a ^ b }, false)
}

// opTEST: AND's flag path with the result discarded. Not present as a
// distinct case in the original switch; supplemented here per SPEC_FULL
// since it is the natural extension of the shared logical-flags path and no
// Non-goal excludes it.
func (e *Emulator) opTEST(instr DecodedInstruction) error {
	return e.logicOp(instr, func(a, b uint32) uint32 { return a & b }, true)
}

// opLEA: dst <- calc_addr(mem). No flags. Per §9's open note, the memory
// operand is the source, found at Ops[1] (matching the decoder convention
// `emu_lea` relies on in the original source).
func (e *Emulator) opLEA(instr DecodedInstruction) error {
	mem := instr.Ops[1]
	if mem.VKind != OperandMemory {
		return fmt.Errorf("%w: LEA source is not a memory operand", ErrDecode)
	}
	return e.writeOperand(instr.Ops[0], e.calcAddr(mem))
}

// opXCHG: read both, cross-write.
func (e *Emulator) opXCHG(instr DecodedInstruction) error {
	a, err := e.readOperand(instr.Ops[0])
	if err != nil {
		return err
	}
	b, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	if err := e.writeOperand(instr.Ops[0], b); err != nil {
		return err
	}
	return e.writeOperand(instr.Ops[1], a)
}

// pushadOrder is the memory order PUSHAD pushes registers in: EDI, ESI, EBP,
// ESP, EBX, EDX, ECX, EAX.
var pushadOrder = [8]int{RegEDI, RegESI, RegEBP, RegESP, RegEBX, RegEDX, RegECX, RegEAX}

// opPUSHAD pushes all eight GPRs in pushadOrder, 32-bit by default or 16-bit
// under the operand-size override.
func (e *Emulator) opPUSHAD(instr DecodedInstruction) error {
	// ESP must be read before any of the pushes in this sequence mutate it.
	savedESP := e.regs.Get32(RegESP)
	for _, cell := range pushadOrder {
		v := e.regs.Get32(cell)
		if cell == RegESP {
			v = savedESP
		}
		if instr.OpSize16 {
			if err := e.push16(uint16(v)); err != nil {
				return err
			}
		} else if err := e.push32(v); err != nil {
			return err
		}
	}
	return nil
}

// opPOPAD reproduces the source's documented defect verbatim (§9): instead
// of popping into EDI, ESI, EBP, (discard, restoring no register for ESP's
// slot), EBX, EDX, ECX, EAX, the slot meant for ESI at index 1 writes EDX a
// second time. This is not "fixed" here — it is the observed behavior the
// specification requires preserving.
func (e *Emulator) opPOPAD(instr DecodedInstruction) error {
	pop := func() (uint32, error) {
		if instr.OpSize16 {
			v, err := e.pop16()
			return uint32(v), err
		}
		return e.pop32()
	}

	// Correct Intel order would be EDI, ESI, EBP, skip-ESP, EBX, EDX, ECX,
	// EAX. The slots below deliberately write RegEDX at both index 1 (where
	// ESI belongs) and index 5, per the defect being preserved.
	order := [8]int{RegEDI, RegEDX, RegEBP, -1, RegEBX, RegEDX, RegECX, RegEAX}
	for _, cell := range order {
		v, err := pop()
		if err != nil {
			return err
		}
		if cell == -1 {
			continue // ESP's slot: consumed from the stream, never written
		}
		if instr.OpSize16 {
			e.regs.WriteView(gpr16Views[cell], v)
		} else {
			e.regs.Set32(cell, v)
		}
	}
	return nil
}

func (e *Emulator) opCLC(DecodedInstruction) error { e.flags.set(FlagCF, false); return nil }
func (e *Emulator) opSTC(DecodedInstruction) error { e.flags.set(FlagCF, true); return nil }
func (e *Emulator) opCLD(DecodedInstruction) error { e.flags.set(FlagDF, false); return nil }
func (e *Emulator) opSTD(DecodedInstruction) error { e.flags.set(FlagDF, true); return nil }
func (e *Emulator) opNOP(DecodedInstruction) error { return nil }
