package x86stub

// Shift/rotate count comes from Ops[1]: an Immediate operand for the
// immediate and by-1 forms, or a Register operand naming CL.
// Width w is 8/16/32, taken from the destination's width descriptor.

// opSHL: if c==0, no effect. Else result = src<<c; CF = bit w of the
// 64-bit extended result; dst = low w bits. OF is defined only when c==1
// (MSB(dst) XOR CF); largeshift (original count >= w) additionally
// undefines CF.
func (e *Emulator) opSHL(instr DecodedInstruction) error {
	dst := instr.Ops[0]
	src, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	d := operandWidth(dst)
	c := rawCount & 0x1F
	largeshift := rawCount >= uint32(d.CarryBit)
	if c == 0 {
		return nil
	}

	wide := uint64(src&d.Mask) << c
	result := uint32(wide) & d.Mask
	e.flags.set(FlagCF, wide&(uint64(1)<<d.CarryBit) != 0)
	if c == 1 {
		e.flags.set(FlagOF, bit(result, d.SignBit) != e.flags.CF())
	} else {
		e.flags.setUndefined(FlagOF)
	}
	if largeshift {
		e.flags.setUndefined(FlagCF)
	}
	return e.writeOperand(dst, result)
}

// opSHR: if c==0, no effect. Else shift right by c-1, CF = LSB of that
// intermediate, dst = intermediate >> 1. OF defined only when c==1 (old
// MSB).
func (e *Emulator) opSHR(instr DecodedInstruction) error {
	dst := instr.Ops[0]
	src, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	d := operandWidth(dst)
	c := rawCount & 0x1F
	largeshift := rawCount >= uint32(d.CarryBit)
	if c == 0 {
		return nil
	}

	val := src & d.Mask
	oldMSB := bit(val, d.SignBit)
	intermediate := val >> (c - 1)
	e.flags.set(FlagCF, intermediate&1 != 0)
	result := (intermediate >> 1) & d.Mask
	if c == 1 {
		e.flags.set(FlagOF, oldMSB)
	} else {
		e.flags.setUndefined(FlagOF)
	}
	if largeshift {
		e.flags.setUndefined(FlagCF)
	}
	return e.writeOperand(dst, result)
}

// rotateFlagsROL/rotateFlagsROR apply the CF/OF rule of ROL/ROR given the
// already-rotated result: CF is the bit rotated into the LSB (ROL) or the
// bit rotated into the MSB (ROR) as already reflected by result; OF is
// defined only when c==1.
func rotateFlagsROL(f *Flags, result uint32, d RegView, c uint32) {
	cf := result&1 != 0
	f.set(FlagCF, cf)
	if c == 1 {
		f.set(FlagOF, bit(result, d.SignBit) != cf)
	} else {
		f.setUndefined(FlagOF)
	}
}

func rotateFlagsROR(f *Flags, result uint32, d RegView, c uint32) {
	msb := bit(result, d.SignBit)
	f.set(FlagCF, msb)
	if c == 1 {
		msbMinus1 := bit(result, d.SignBit-1)
		f.set(FlagOF, msb != msbMinus1)
	} else {
		f.setUndefined(FlagOF)
	}
}

// opROL/opROR rotate by c mod w. Per §9, the source's 16-bit arm is missing
// a break and falls through into the 32-bit arm; Go's switch does not fall
// through implicitly, so that defect is reproduced here with an explicit
// fallthrough in the case 16 arm rather than by writing a correct break —
// a 16-bit rotate silently re-executes the 32-bit rotation logic against
// the same value.
func (e *Emulator) opROL(instr DecodedInstruction) error {
	dst := instr.Ops[0]
	src, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	d := operandWidth(dst)
	var result uint32
	var c uint32

	switch d.CarryBit {
	case 8:
		c = rawCount % 8
		v := src & 0xFF
		result = ((v << c) | (v >> (8 - c))) & 0xFF
		if c == 0 {
			result = v
		}
		rotateFlagsROL(&e.flags, result, d, c)
	case 16:
		c = rawCount % 16
		v := src & 0xFFFF
		result = ((v << c) | (v >> (16 - c))) & 0xFFFF
		if c == 0 {
			result = v
		}
		rotateFlagsROL(&e.flags, result, d, c)
		fallthrough
	case 32:
		c = rawCount % 32
		v := src
		if c == 0 {
			result = v
		} else {
			result = (v << c) | (v >> (32 - c))
		}
		rotateFlagsROL(&e.flags, result, d, c)
	}
	return e.writeOperand(dst, result)
}

func (e *Emulator) opROR(instr DecodedInstruction) error {
	dst := instr.Ops[0]
	src, err := e.readOperand(dst)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(instr.Ops[1])
	if err != nil {
		return err
	}
	d := operandWidth(dst)
	var result uint32
	var c uint32

	switch d.CarryBit {
	case 8:
		c = rawCount % 8
		v := src & 0xFF
		if c == 0 {
			result = v
		} else {
			result = ((v >> c) | (v << (8 - c))) & 0xFF
		}
		rotateFlagsROR(&e.flags, result, d, c)
	case 16:
		c = rawCount % 16
		v := src & 0xFFFF
		if c == 0 {
			result = v
		} else {
			result = ((v >> c) | (v << (16 - c))) & 0xFFFF
		}
		rotateFlagsROR(&e.flags, result, d, c)
		fallthrough
	case 32:
		c = rawCount % 32
		v := src
		if c == 0 {
			result = v
		} else {
			result = (v >> c) | (v << (32 - c))
		}
		rotateFlagsROR(&e.flags, result, d, c)
	}
	return e.writeOperand(dst, result)
}
