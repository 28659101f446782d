package x86stub

// repHarness is the higher-order REP/REPE/REPNE loop shared by LODS, STOS,
// MOVS, and SCAS (§4.7). body executes one iteration; stop decides, after
// decrementing the counter, whether to continue (only SCAS needs the ZF
// short-circuit — its stop returns true to end the loop).
//
// Steps, per instruction:
//  1. Pre-check: if either REP latch is set and the counter is already
//     zero, skip the body entirely.
//  2. Execute the body once.
//  3. Advance index registers by elemSize, direction per DF.
//  4. Post-check: decrement the counter; stop when it reaches zero, or
//     when stop(flags) reports an early exit (SCAS's ZF rule). Instructions
//     with no REP latch run the body exactly once regardless of counter.
func (e *Emulator) repHarness(instr DecodedInstruction, elemSize uint32, body func() error, stop func() bool) error {
	repActive := e.prefixREPE || e.prefixREPNE
	counterReg := RegECX

	counter := func() uint32 {
		if instr.AddrSize16 {
			return e.regs.ReadView(gpr16Views[counterReg])
		}
		return e.regs.Get32(counterReg)
	}
	setCounter := func(v uint32) {
		if instr.AddrSize16 {
			e.regs.WriteView(gpr16Views[counterReg], v)
		} else {
			e.regs.Set32(counterReg, v)
		}
	}

	if repActive && counter() == 0 {
		return nil
	}

	for {
		if err := body(); err != nil {
			return err
		}

		if e.flags.DF() {
			e.stepIndex(instr, elemSize, -1)
		} else {
			e.stepIndex(instr, elemSize, 1)
		}

		if !repActive {
			return nil
		}

		c := counter() - 1
		setCounter(c)
		if c == 0 {
			return nil
		}
		if stop != nil && stop() {
			return nil
		}
	}
}

// stepIndex advances ESI/EDI per the instruction's string kind. dir is +1
// or -1; both indices update for MOVS, ESI-only for LODS, EDI-only for
// STOS/SCAS.
func (e *Emulator) stepIndex(instr DecodedInstruction, elemSize uint32, dir int32) {
	delta := uint32(int32(elemSize) * dir)
	switch instr.Opcode {
	case OpLODS:
		e.regs.Set32(RegESI, e.regs.Get32(RegESI)+delta)
	case OpSTOS:
		e.regs.Set32(RegEDI, e.regs.Get32(RegEDI)+delta)
	case OpMOVS:
		e.regs.Set32(RegESI, e.regs.Get32(RegESI)+delta)
		e.regs.Set32(RegEDI, e.regs.Get32(RegEDI)+delta)
	case OpSCAS:
		e.regs.Set32(RegEDI, e.regs.Get32(RegEDI)+delta)
	}
}

// accWidth returns the AL/AX/EAX register view for the current operand
// size, used by LODS/STOS/SCAS's implicit accumulator operand.
func accWidth(instr DecodedInstruction, size AccessSize) RegView {
	switch size {
	case SizeByte:
		return gpr8Views[RegEAX]
	case SizeWord:
		return gpr16Views[RegEAX]
	default:
		return gpr32Views[RegEAX]
	}
}

// opLODS: AL/AX/EAX <- [ESI].
func (e *Emulator) opLODS(instr DecodedInstruction) error {
	mem := instr.Ops[0]
	elem := mem.Kind.bytes()
	acc := accWidth(instr, mem.Kind)
	return e.repHarness(instr, elem, func() error {
		v, err := e.readOperand(mem)
		if err != nil {
			return err
		}
		e.regs.WriteView(acc, v)
		return nil
	}, nil)
}

// opSTOS: [EDI] <- AL/AX/EAX.
func (e *Emulator) opSTOS(instr DecodedInstruction) error {
	mem := instr.Ops[0]
	elem := mem.Kind.bytes()
	acc := accWidth(instr, mem.Kind)
	return e.repHarness(instr, elem, func() error {
		return e.writeOperand(mem, e.regs.ReadView(acc))
	}, nil)
}

// opMOVS: [EDI] <- [ESI].
func (e *Emulator) opMOVS(instr DecodedInstruction) error {
	src, dst := instr.Ops[1], instr.Ops[0]
	elem := src.Kind.bytes()
	return e.repHarness(instr, elem, func() error {
		v, err := e.readOperand(src)
		if err != nil {
			return err
		}
		return e.writeOperand(dst, v)
	}, nil)
}

// opSCAS: compare [EDI] against AL/AX/EAX using addsub flags. REPE stops
// when ZF=0, REPNE stops when ZF=1 — the only string op with a ZF
// short-circuit (§4.7).
func (e *Emulator) opSCAS(instr DecodedInstruction) error {
	mem := instr.Ops[0]
	elem := mem.Kind.bytes()
	acc := accWidth(instr, mem.Kind)
	d := mem.Kind.view()
	return e.repHarness(instr, elem, func() error {
		v, err := e.readOperand(mem)
		if err != nil {
			return err
		}
		a := e.regs.ReadView(acc)
		r := (a - v) & d.Mask
		e.flags.calcFlagsAddSub(a, v, r, d, true)
		return nil
	}, func() bool {
		if e.prefixREPE {
			return !e.flags.ZF()
		}
		if e.prefixREPNE {
			return e.flags.ZF()
		}
		return false
	})
}
