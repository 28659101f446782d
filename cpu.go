package x86stub

import "fmt"

// PEOptionalHeader carries the subset of the PE optional header the
// emulator lifecycle needs. The real PE loader (out of scope here per spec
// §1) is expected to supply this from a parsed image.
type PEOptionalHeader struct {
	AddressOfEntryPoint uint32
	SizeOfStackReserve  uint32
}

const pageSize = 0x1000

func pageAlignUp(v uint32) uint32 {
	return (v + pageSize - 1) &^ (pageSize - 1)
}

// Emulator is the instruction-emulation engine: register file, flags,
// decoded-instruction cache, and the two REP-prefix latches, wired to an
// externally supplied VMM and Decoder. It is single-threaded and strictly
// sequential — Step is the only re-entry point (§5).
type Emulator struct {
	regs  Registers
	flags Flags
	eip   uint32

	vmm VMM
	dec Decoder

	cache decodeCache

	prefixREPE  bool
	prefixREPNE bool

	halted bool

	handlers map[Opcode]func(*Emulator, DecodedInstruction) error
}

// NewEmulator constructs an emulator per §4.10: EIP is set from
// RVA2VA(AddressOfEntryPoint), a stack of SizeOfStackReserve bytes
// (page-aligned up) is allocated via the VMM, ESP is set to the aligned top,
// and the MappingEnd sentinel is pushed as the initial return address so a
// top-level RET terminates the run.
func NewEmulator(vmm VMM, dec Decoder, pe PEOptionalHeader) (*Emulator, error) {
	e := &Emulator{vmm: vmm, dec: dec}
	e.eip = vmm.RVA2VA(pe.AddressOfEntryPoint)

	stackSize := pageAlignUp(pe.SizeOfStackReserve)
	base, err := vmm.Alloc(stackSize)
	if err != nil {
		return nil, fmt.Errorf("x86stub: allocate stack: %w", err)
	}
	top := base + stackSize
	e.regs.Set32(RegESP, top)

	if err := e.push32(MappingEnd); err != nil {
		return nil, fmt.Errorf("x86stub: seed return sentinel: %w", err)
	}

	e.initHandlers()
	return e, nil
}

// EIP returns the current program counter.
func (e *Emulator) EIP() uint32 { return e.eip }

// SetEIP overrides the program counter, used by hosts seeding an
// entry point other than the one computed at construction.
func (e *Emulator) SetEIP(v uint32) { e.eip = v }

// GetReg32 reads one of the eight GPR cells by canonical index.
func (e *Emulator) GetReg32(idx int) uint32 { return e.regs.Get32(idx) }

// SetReg32 writes one of the eight GPR cells by canonical index.
func (e *Emulator) SetReg32(idx int, v uint32) { e.regs.Set32(idx, v) }

// Flags returns a copy of the current EFLAGS/defined-mask pair.
func (e *Emulator) Flags() Flags { return e.flags }

// SetFlags overwrites EFLAGS and the defined mask directly, used by tests
// seeding a precondition.
func (e *Emulator) SetFlags(f Flags) { e.flags = f }

// push32/pop32 are the stack primitives shared by PUSH/POP/PUSHAD/POPAD/
// CALL/RET and the lifecycle's sentinel seed.
func (e *Emulator) push32(v uint32) error {
	sp := e.regs.Get32(RegESP) - 4
	if err := e.vmm.Write32(sp, v); err != nil {
		return fmt.Errorf("%w: push32: %v", ErrStackFault, err)
	}
	e.regs.Set32(RegESP, sp)
	return nil
}

func (e *Emulator) pop32() (uint32, error) {
	sp := e.regs.Get32(RegESP)
	v, err := e.vmm.Read32(sp)
	if err != nil {
		return 0, fmt.Errorf("%w: pop32: %v", ErrStackFault, err)
	}
	e.regs.Set32(RegESP, sp+4)
	return v, nil
}

func (e *Emulator) push16(v uint16) error {
	sp := e.regs.Get32(RegESP) - 2
	if err := e.vmm.Write16(sp, v); err != nil {
		return fmt.Errorf("%w: push16: %v", ErrStackFault, err)
	}
	e.regs.Set32(RegESP, sp)
	return nil
}

func (e *Emulator) pop16() (uint16, error) {
	sp := e.regs.Get32(RegESP)
	v, err := e.vmm.Read16(sp)
	if err != nil {
		return 0, fmt.Errorf("%w: pop16: %v", ErrStackFault, err)
	}
	e.regs.Set32(RegESP, sp+2)
	return v, nil
}

// Step implements the fetch-decode-dispatch loop (§4.4):
//  1. MAPPING_END check takes priority over the import trap (original
//     source's cli_emulator_step order, preserved here).
//  2. Import-trap check: if the VMM reports pc is a trap address, the
//     registered handler runs instead of decoding, and Step returns.
//  3. fetch(pc) via the decode cache; decode failure is fatal.
//  4. pc advances by instr.Len before the handler runs, so relative
//     branches add to the post-fetch PC.
//  5. Dispatch on instr.Opcode.
//  6. REP/REPE and REPNE prefixes (surfaced via instr.RepPrefix) latch and
//     return without clearing; every other opcode clears both latches.
//     There is no LOCK latch.
func (e *Emulator) Step() error {
	if e.eip == MappingEnd {
		return ErrProgramExited
	}

	if imp, ok := e.vmm.GetImport(e.eip); ok {
		return e.runImport(imp)
	}

	instr, err := e.cache.fetch(e.vmm, e.dec, e.eip)
	if err != nil {
		return fmt.Errorf("%w: at %#x: %v", ErrDecode, e.eip, err)
	}

	e.eip += instr.Len

	if instr.RepPrefix != 0 {
		e.prefixREPE = instr.RepPrefix == 1
		e.prefixREPNE = instr.RepPrefix == 2
		return nil
	}

	handler, ok := e.handlers[instr.Opcode]
	if !ok {
		return fmt.Errorf("%w: opcode tag %d", ErrUnimplemented, instr.Opcode)
	}

	err = handler(e, instr)

	e.prefixREPE = false
	e.prefixREPNE = false

	return err
}

// runImport implements the generic stdcall handler (§4.9): pop the return
// address into pc, add the declared argument byte count to ESP, zero EAX,
// and report success. arg_bytes == 254 marks unsupported varargs.
func (e *Emulator) runImport(imp ImportDesc) error {
	if imp.ArgBytes == varargsSentinel {
		return fmt.Errorf("%w: %s", ErrUnsupportedImport, imp.Description)
	}
	ret, err := e.pop32()
	if err != nil {
		return err
	}
	e.regs.Set32(RegESP, e.regs.Get32(RegESP)+imp.ArgBytes)
	e.regs.Set32(RegEAX, 0)
	e.eip = ret
	if imp.Handler != nil {
		return imp.Handler(e)
	}
	return nil
}
