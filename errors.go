// Package x86stub implements a 32-bit x86 instruction emulation engine for
// single-stepping Windows PE unpacking stubs inside a sandboxed virtual
// address space. (c) 2024-2026 - GPLv3 or later
package x86stub

import "errors"

// Error kinds returned by Step and the operand resolver. Handlers return one
// of these (or a wrapped variant) rather than panicking; the step loop
// propagates failure without attempting recovery.
var (
	// ErrDecode is returned when the Decoder cannot produce an instruction
	// at the current program counter.
	ErrDecode = errors.New("x86stub: decode failure")

	// ErrOperandFault covers VMM read/write failures and writes to an
	// invalid (sentinel) register view.
	ErrOperandFault = errors.New("x86stub: operand fault")

	// ErrStackFault is a push/pop that runs beyond the allocated stack,
	// propagated up from the VMM.
	ErrStackFault = errors.New("x86stub: stack fault")

	// ErrUnimplemented marks an opcode tag with no registered handler.
	ErrUnimplemented = errors.New("x86stub: unimplemented opcode")

	// ErrUnsupportedImport is returned when an import descriptor declares
	// the varargs sentinel (arg_bytes == 254).
	ErrUnsupportedImport = errors.New("x86stub: unsupported import shape")

	// ErrProgramExited is not a failure: it signals that EIP landed on the
	// MAPPING_END sentinel, i.e. the emulated program returned past its
	// top frame.
	ErrProgramExited = errors.New("x86stub: program exited")
)
