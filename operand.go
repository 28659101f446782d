package x86stub

import "fmt"

// calcAddr computes op.Disp + read(op.AddReg) + op.Scale*read(op.ScaleReg),
// per §4.1. Missing (sentinel) views contribute zero.
func (e *Emulator) calcAddr(op Operand) uint32 {
	base := e.regs.ReadView(op.AddReg)
	index := e.regs.ReadView(op.ScaleReg)
	return uint32(op.Disp) + base + op.Scale*index
}

// readOperand implements read_operand: register operands read straight from
// the register file; memory operands compute an address and read through
// the VMM at the declared size; relative operands return the raw signed
// displacement without touching memory.
func (e *Emulator) readOperand(op Operand) (uint32, error) {
	switch op.VKind {
	case OperandRegister:
		return e.regs.ReadView(op.AddReg), nil
	case OperandImmediate:
		return uint32(op.Disp), nil
	case OperandRelative:
		return uint32(op.Disp), nil
	case OperandMemory:
		addr := e.calcAddr(op)
		switch op.Kind {
		case SizeByte:
			v, err := e.vmm.Read8(addr)
			if err != nil {
				return 0, fmt.Errorf("%w: read8 at %#x: %v", ErrOperandFault, addr, err)
			}
			return uint32(v), nil
		case SizeWord:
			v, err := e.vmm.Read16(addr)
			if err != nil {
				return 0, fmt.Errorf("%w: read16 at %#x: %v", ErrOperandFault, addr, err)
			}
			return uint32(v), nil
		default:
			v, err := e.vmm.Read32(addr)
			if err != nil {
				return 0, fmt.Errorf("%w: read32 at %#x: %v", ErrOperandFault, addr, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unreadable operand kind %d", ErrOperandFault, op.VKind)
}

// writeOperand implements write_operand: the symmetric counterpart to
// readOperand. Writing to an immediate/relative operand, or to the sentinel
// register view, is an operand fault.
func (e *Emulator) writeOperand(op Operand, v uint32) error {
	switch op.VKind {
	case OperandRegister:
		if op.AddReg.Cell == sentinelCell {
			return fmt.Errorf("%w: write to sentinel register", ErrOperandFault)
		}
		e.regs.WriteView(op.AddReg, v)
		return nil
	case OperandMemory:
		addr := e.calcAddr(op)
		switch op.Kind {
		case SizeByte:
			if err := e.vmm.Write8(addr, byte(v)); err != nil {
				return fmt.Errorf("%w: write8 at %#x: %v", ErrOperandFault, addr, err)
			}
		case SizeWord:
			if err := e.vmm.Write16(addr, uint16(v)); err != nil {
				return fmt.Errorf("%w: write16 at %#x: %v", ErrOperandFault, addr, err)
			}
		default:
			if err := e.vmm.Write32(addr, v); err != nil {
				return fmt.Errorf("%w: write32 at %#x: %v", ErrOperandFault, addr, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unwritable operand kind %d", ErrOperandFault, op.VKind)
}

// operandWidth returns the width descriptor flags should use for an
// operand: the register view itself if the operand is a register, else a
// canonical memory-size descriptor.
func operandWidth(op Operand) RegView {
	if op.VKind == OperandRegister {
		return op.AddReg
	}
	return op.Kind.view()
}
