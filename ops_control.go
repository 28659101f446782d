package x86stub

// jumpTo resolves a JMP-family operand and moves pc: RELATIVE operands add
// a sign-extended displacement to the (already post-fetch) pc; any other
// operand kind is read as an absolute new pc. Under the operand-size
// override, pc is masked to 16 bits (§4.8).
func (e *Emulator) jumpTo(instr DecodedInstruction, op Operand) error {
	if op.VKind == OperandRelative {
		e.eip = uint32(int32(e.eip) + op.Disp)
	} else {
		v, err := e.readOperand(op)
		if err != nil {
			return err
		}
		e.eip = v
	}
	if instr.OpSize16 {
		e.eip &= 0xFFFF
	}
	return nil
}

// opJMP: unconditional jump/branch.
func (e *Emulator) opJMP(instr DecodedInstruction) error {
	return e.jumpTo(instr, instr.Ops[0])
}

// jccHandler builds a conditional-jump handler from an EFLAGS predicate
// (§4.8's condition table), shared by every Jcc so the branch logic itself
// lives in one place.
func jccHandler(taken func(*Flags) bool) func(*Emulator, DecodedInstruction) error {
	return func(e *Emulator, instr DecodedInstruction) error {
		if !taken(&e.flags) {
			return nil
		}
		return e.jumpTo(instr, instr.Ops[0])
	}
}

// opLOOP: decrement CX/ECX per the address-size override; if nonzero, add
// the sign-extended 8-bit relative displacement to pc.
func (e *Emulator) opLOOP(instr DecodedInstruction) error {
	var count uint32
	if instr.AddrSize16 {
		count = e.regs.ReadView(gpr16Views[RegECX]) - 1
		e.regs.WriteView(gpr16Views[RegECX], count)
	} else {
		count = e.regs.Get32(RegECX) - 1
		e.regs.Set32(RegECX, count)
	}
	if count == 0 {
		return nil
	}
	return e.jumpTo(instr, instr.Ops[0])
}

// opCALL: push the current (post-advance) pc as the return address, then
// behave like JMP.
func (e *Emulator) opCALL(instr DecodedInstruction) error {
	if err := e.push32(e.eip); err != nil {
		return err
	}
	return e.jumpTo(instr, instr.Ops[0])
}

// opRET (near): pop pc; if an immediate displacement operand is present,
// add it to ESP (word-width under the address-size override).
func (e *Emulator) opRET(instr DecodedInstruction) error {
	ret, err := e.pop32()
	if err != nil {
		return err
	}
	e.eip = ret
	if instr.Ops[0].VKind == OperandImmediate {
		disp := uint32(instr.Ops[0].Disp)
		if instr.AddrSize16 {
			e.regs.WriteView(gpr16Views[RegESP], e.regs.ReadView(gpr16Views[RegESP])+disp)
		} else {
			e.regs.Set32(RegESP, e.regs.Get32(RegESP)+disp)
		}
	}
	return nil
}
