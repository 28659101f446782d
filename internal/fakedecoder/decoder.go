// Package fakedecoder is a minimal x86 instruction decoder test double
// implementing x86stub.Decoder. It covers exactly the opcode surface the
// emulation core dispatches on (32-bit operand size, no segment overrides
// beyond what the core ignores), and exists to exercise the core in tests
// and the demonstration CLI — a production decoder (the full byte-level
// ModR/M/SIB grammar across every prefix combination) is an external
// collaborator the core only consumes through an interface (spec §1).
//
// Grounded on the ModR/M/SIB decoding conventions of cpu_x86.go
// (calcEffectiveAddress32, getModRMMod/Reg/RM, getSIBScale/Index/Base),
// adapted to the external DecodedInstruction/Operand contract instead of
// an internally fetch-driven CPU struct.
package fakedecoder

import (
	"fmt"

	x86stub "github.com/hollow-stub/x86stub"
)

// Decoder is the fake decoder. It has no state of its own; VMM is passed in
// per call since the emulator core owns it.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

type cursor struct {
	vmm x86stub.VMM
	pc  uint32
	pos uint32
}

func (c *cursor) u8() (byte, error) {
	v, err := c.vmm.Read8(c.pc + c.pos)
	if err != nil {
		return 0, err
	}
	c.pos++
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	v, err := c.vmm.Read32(c.pc + c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

func (c *cursor) i8() (int8, error) {
	v, err := c.u8()
	return int8(v), err
}

func (c *cursor) u16() (uint16, error) {
	v, err := c.vmm.Read16(c.pc + c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return v, nil
}

// modrm holds the decoded ModR/M (and, when present, SIB) fields for the
// current instruction.
type modrm struct {
	mod, reg, rm byte
	isReg        bool // mod == 3: rm names a register, not memory
	op           x86stub.Operand
}

// decodeModRM32 builds either a register operand (mod==3) or a
// base+scale*index+disp memory operand, matching calcEffectiveAddress32's
// structure: SIB byte on rm==4, disp32-only addressing on mod==0 && rm==5.
func decodeModRM32(c *cursor, size x86stub.AccessSize) (modrm, error) {
	b, err := c.u8()
	if err != nil {
		return modrm{}, err
	}
	m := modrm{mod: (b >> 6) & 3, reg: (b >> 3) & 7, rm: b & 7}

	if m.mod == 3 {
		m.isReg = true
		m.op = x86stub.RegisterOperand(x86stub.RegView32(m.rm))
		return m, nil
	}

	var base, index x86stub.RegView
	var scale uint32
	var disp int32

	if m.rm == 4 {
		sib, err := c.u8()
		if err != nil {
			return modrm{}, err
		}
		scaleBits := (sib >> 6) & 3
		idx := (sib >> 3) & 7
		baseReg := sib & 7
		scale = uint32(1) << scaleBits
		if idx == 4 {
			index = x86stub.NoneView
			scale = 0
		} else {
			index = x86stub.RegView32(idx)
		}
		if baseReg == 5 && m.mod == 0 {
			d, err := c.u32()
			if err != nil {
				return modrm{}, err
			}
			disp = int32(d)
			base = x86stub.NoneView
		} else {
			base = x86stub.RegView32(baseReg)
		}
	} else if m.rm == 5 && m.mod == 0 {
		d, err := c.u32()
		if err != nil {
			return modrm{}, err
		}
		disp = int32(d)
		base = x86stub.NoneView
	} else {
		base = x86stub.RegView32(m.rm)
	}

	switch m.mod {
	case 1:
		d, err := c.i8()
		if err != nil {
			return modrm{}, err
		}
		disp += int32(d)
	case 2:
		d, err := c.u32()
		if err != nil {
			return modrm{}, err
		}
		disp += int32(d)
	}

	m.op = x86stub.MemoryOperand(size, base, index, scale, disp)
	return m, nil
}

// grp1Opcodes maps the Grp1 reg field to an opcode tag.
var grp1Opcodes = [8]x86stub.Opcode{
	x86stub.OpADD, x86stub.OpOR, x86stub.OpADC, x86stub.OpSBB,
	x86stub.OpAND, x86stub.OpSUB, x86stub.OpXOR, x86stub.OpCMP,
}

// rowArith maps a 0x00-0x3D row's base byte (opcode &^ 0x07) to the same tags,
// for the Eb/Gb, Ev/Gv, Gb/Eb, Gv/Ev, AL/Ib, eAX/Iv encodings.
var rowArith = map[byte]x86stub.Opcode{
	0x00: x86stub.OpADD, 0x08: x86stub.OpOR, 0x10: x86stub.OpADC, 0x18: x86stub.OpSBB,
	0x20: x86stub.OpAND, 0x28: x86stub.OpSUB, 0x30: x86stub.OpXOR, 0x38: x86stub.OpCMP,
}

// Decode implements x86stub.Decoder.
func (d *Decoder) Decode(vmm x86stub.VMM, pc uint32) (x86stub.DecodedInstruction, error) {
	c := &cursor{vmm: vmm, pc: pc}
	instr := x86stub.DecodedInstruction{AddrSize16: false, SegOverride: -1}

	opcode, err := c.u8()
	if err != nil {
		return instr, fmt.Errorf("fakedecoder: %w", err)
	}

	// REP/REPNE prefixes: report as a one-byte OpNOP carrying RepPrefix so
	// the core's Step can latch them without consulting the handler table.
	// Other prefixes (operand-size, address-size, segment) are not decoded.
	switch opcode {
	case 0xF3:
		instr.Opcode = x86stub.OpNOP
		instr.RepPrefix = 1
		instr.Len = c.pos
		return instr, nil
	case 0xF2:
		instr.Opcode = x86stub.OpNOP
		instr.RepPrefix = 2
		instr.Len = c.pos
		return instr, nil
	}

	base := opcode &^ 0x07
	if tag, ok := rowArith[base]; ok && opcode-base <= 5 {
		switch opcode - base {
		case 0: // Eb,Gb
			mr, err := decodeModRM32(c, x86stub.SizeByte)
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = mr.op
			instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView8(mr.reg))
		case 1: // Ev,Gv
			mr, err := decodeModRM32(c, x86stub.SizeDword)
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = mr.op
			instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
		case 2: // Gb,Eb
			mr, err := decodeModRM32(c, x86stub.SizeByte)
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView8(mr.reg))
			instr.Ops[1] = mr.op
		case 3: // Gv,Ev
			mr, err := decodeModRM32(c, x86stub.SizeDword)
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
			instr.Ops[1] = mr.op
		case 4: // AL,Ib
			imm, err := c.u8()
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView8(0))
			instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
		case 5: // eAX,Iv
			imm, err := c.u32()
			if err != nil {
				return instr, err
			}
			instr.Opcode = tag
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(0))
			instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
		}
		instr.Len = c.pos
		return instr, nil
	}

	switch opcode {
	case 0x90:
		instr.Opcode = x86stub.OpNOP
	case 0x60:
		instr.Opcode = x86stub.OpPUSHAD
	case 0x61:
		instr.Opcode = x86stub.OpPOPAD
	case 0xF8:
		instr.Opcode = x86stub.OpCLC
	case 0xF9:
		instr.Opcode = x86stub.OpSTC
	case 0xFC:
		instr.Opcode = x86stub.OpCLD
	case 0xFD:
		instr.Opcode = x86stub.OpSTD
	case 0xC3:
		instr.Opcode = x86stub.OpRET
	case 0xC2: // RET imm16
		imm, err := c.u16()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpRET
		instr.Ops[0] = x86stub.ImmediateOperand(int32(imm))
	case 0xE8: // CALL rel32
		rel, err := c.u32()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpCALL
		instr.Ops[0] = x86stub.RelativeOperand(int32(rel))
	case 0xE9: // JMP rel32
		rel, err := c.u32()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpJMP
		instr.Ops[0] = x86stub.RelativeOperand(int32(rel))
	case 0xEB: // JMP rel8
		rel, err := c.i8()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpJMP
		instr.Ops[0] = x86stub.RelativeOperand(int32(rel))
	case 0xE2: // LOOP rel8
		rel, err := c.i8()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpLOOP
		instr.Ops[0] = x86stub.RelativeOperand(int32(rel))
	case 0x8D: // LEA Gv,M
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpLEA
		instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
		instr.Ops[1] = mr.op
	case 0x87: // XCHG Ev,Gv
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpXCHG
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
	case 0x85: // TEST Ev,Gv
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpTEST
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
	case 0x89: // MOV Ev,Gv
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpMOV
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
	case 0x8B: // MOV Gv,Ev
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpMOV
		instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(mr.reg))
		instr.Ops[1] = mr.op
	case 0xC7: // MOV Ev,Iv
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		imm, err := c.u32()
		if err != nil {
			return instr, err
		}
		instr.Opcode = x86stub.OpMOV
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
	case 0x81: // Grp1 Ev,Iv
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		imm, err := c.u32()
		if err != nil {
			return instr, err
		}
		instr.Opcode = grp1Opcodes[mr.reg]
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
	case 0x83: // Grp1 Ev,Ib (sign-extended)
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		imm, err := c.i8()
		if err != nil {
			return instr, err
		}
		instr.Opcode = grp1Opcodes[mr.reg]
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
	case 0xC1: // Grp2 Ev,Ib
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		imm, err := c.u8()
		if err != nil {
			return instr, err
		}
		instr.Opcode = grp2Opcode(mr.reg)
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
	case 0xD1: // Grp2 Ev,1
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = grp2Opcode(mr.reg)
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.ImmediateOperand(1)
	case 0xD3: // Grp2 Ev,CL
		mr, err := decodeModRM32(c, x86stub.SizeDword)
		if err != nil {
			return instr, err
		}
		instr.Opcode = grp2Opcode(mr.reg)
		instr.Ops[0] = mr.op
		instr.Ops[1] = x86stub.RegisterOperand(x86stub.RegView8(1)) // CL
	case 0xA4: // MOVSB
		instr.Opcode = x86stub.OpMOVS
		instr.Ops[1] = x86stub.MemoryOperand(x86stub.SizeByte, x86stub.RegView32(uint8Idx("ESI")), x86stub.NoneView, 0, 0)
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeByte, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	case 0xA5: // MOVSD
		instr.Opcode = x86stub.OpMOVS
		instr.Ops[1] = x86stub.MemoryOperand(x86stub.SizeDword, x86stub.RegView32(uint8Idx("ESI")), x86stub.NoneView, 0, 0)
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeDword, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	case 0xAA: // STOSB
		instr.Opcode = x86stub.OpSTOS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeByte, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	case 0xAB: // STOSD
		instr.Opcode = x86stub.OpSTOS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeDword, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	case 0xAC: // LODSB
		instr.Opcode = x86stub.OpLODS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeByte, x86stub.RegView32(uint8Idx("ESI")), x86stub.NoneView, 0, 0)
	case 0xAD: // LODSD
		instr.Opcode = x86stub.OpLODS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeDword, x86stub.RegView32(uint8Idx("ESI")), x86stub.NoneView, 0, 0)
	case 0xAE: // SCASB
		instr.Opcode = x86stub.OpSCAS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeByte, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	case 0xAF: // SCASD
		instr.Opcode = x86stub.OpSCAS
		instr.Ops[0] = x86stub.MemoryOperand(x86stub.SizeDword, x86stub.RegView32(uint8Idx("EDI")), x86stub.NoneView, 0, 0)
	default:
		if opcode >= 0x40 && opcode <= 0x47 {
			instr.Opcode = x86stub.OpINC
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(opcode - 0x40))
			break
		}
		if opcode >= 0x48 && opcode <= 0x4F {
			instr.Opcode = x86stub.OpDEC
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(opcode - 0x48))
			break
		}
		if opcode >= 0x50 && opcode <= 0x57 {
			instr.Opcode = x86stub.OpPUSH
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(opcode - 0x50))
			break
		}
		if opcode >= 0x58 && opcode <= 0x5F {
			instr.Opcode = x86stub.OpPOP
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(opcode - 0x58))
			break
		}
		if opcode >= 0xB8 && opcode <= 0xBF {
			imm, err := c.u32()
			if err != nil {
				return instr, err
			}
			instr.Opcode = x86stub.OpMOV
			instr.Ops[0] = x86stub.RegisterOperand(x86stub.RegView32(opcode - 0xB8))
			instr.Ops[1] = x86stub.ImmediateOperand(int32(imm))
			break
		}
		if jcc, ok := jccTable[opcode]; ok {
			rel, err := c.i8()
			if err != nil {
				return instr, err
			}
			instr.Opcode = jcc
			instr.Ops[0] = x86stub.RelativeOperand(int32(rel))
			break
		}
		return instr, fmt.Errorf("fakedecoder: unsupported opcode %#02x at %#x", opcode, pc)
	}

	instr.Len = c.pos
	return instr, nil
}

// grp2Opcode maps the Grp2 reg field to a shift/rotate opcode tag. RCL/RCR/
// SAR are outside this decoder's covered surface (spec's shift/rotate scope
// is SHL/SHR/ROL/ROR, §4.6) and fall back to an unimplemented tag so Step
// reports ErrUnimplemented rather than silently misdecoding.
func grp2Opcode(reg byte) x86stub.Opcode {
	switch reg {
	case 0:
		return x86stub.OpROL
	case 1:
		return x86stub.OpROR
	case 4, 6:
		return x86stub.OpSHL
	case 5:
		return x86stub.OpSHR
	default:
		return x86stub.OpInvalid
	}
}

var jccTable = map[byte]x86stub.Opcode{
	0x70: x86stub.OpJO, 0x71: x86stub.OpJNO, 0x72: x86stub.OpJC, 0x73: x86stub.OpJNC,
	0x74: x86stub.OpJZ, 0x75: x86stub.OpJNZ, 0x76: x86stub.OpJBE, 0x77: x86stub.OpJA,
	0x78: x86stub.OpJS, 0x79: x86stub.OpJNS, 0x7A: x86stub.OpJP, 0x7B: x86stub.OpJNP,
	0x7C: x86stub.OpJL, 0x7D: x86stub.OpJGE, 0x7E: x86stub.OpJLE, 0x7F: x86stub.OpJG,
}

// uint8Idx maps a canonical 32-bit register name to its cell index, for the
// string-op mnemonics that hardcode ESI/EDI rather than reading it from
// ModR/M.
func uint8Idx(name string) byte {
	switch name {
	case "EAX":
		return 0
	case "ECX":
		return 1
	case "EDX":
		return 2
	case "EBX":
		return 3
	case "ESP":
		return 4
	case "EBP":
		return 5
	case "ESI":
		return 6
	case "EDI":
		return 7
	}
	return 0
}
