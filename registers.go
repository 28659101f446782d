package x86stub

// Canonical general-register cell indices. Matches the encoding order used
// by ModR/M reg/rm fields: EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI.
const (
	RegEAX = iota
	RegECX
	RegEDX
	RegEBX
	RegESP
	RegEBP
	RegESI
	RegEDI
	numCells
)

// sentinelCell marks an absent register view (e.g. an unused scale_reg, or
// the decoder's collapsed-scale convention). Reading it yields zero; writing
// it is a no-op for scale_reg and an operand fault for a destination.
const sentinelCell = -1

// RegView is a copy-cheap descriptor of how an architectural register name
// projects onto one of the eight 32-bit cells: which cell, which bits of it,
// and where the carry/sign bits fall for flag computation. Views replace the
// pointer-into-struct aliasing a straight register struct would need.
type RegView struct {
	Cell     int    // index into Registers.cells, or sentinelCell
	Mask     uint32 // bits of the cell that belong to this view
	Shift    uint   // right-shift on read / left-shift on write
	CarryBit uint   // bit position immediately above the view's MSB (8/16/32)
	SignBit  uint   // the view's MSB position (7/15/31)
}

// Width descriptors shared by the flag calculator for memory operands of a
// given access size, independent of any specific register.
var (
	widthByte  = RegView{Mask: 0xFF, CarryBit: 8, SignBit: 7}
	widthWord  = RegView{Mask: 0xFFFF, CarryBit: 16, SignBit: 15}
	widthDword = RegView{Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31}
)

// NoneView is the sentinel register view: absent base/index, reads as zero.
var NoneView = RegView{Cell: sentinelCell}

// gpr32Views are indexed by the canonical register index (0-7).
var gpr32Views = [8]RegView{
	{Cell: RegEAX, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegECX, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegEDX, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegEBX, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegESP, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegEBP, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegESI, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
	{Cell: RegEDI, Mask: 0xFFFFFFFF, CarryBit: 32, SignBit: 31},
}

// gpr16Views: AX, CX, DX, BX, SP, BP, SI, DI.
var gpr16Views = [8]RegView{
	{Cell: RegEAX, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegECX, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegEDX, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegEBX, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegESP, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegEBP, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegESI, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
	{Cell: RegEDI, Mask: 0xFFFF, CarryBit: 16, SignBit: 15},
}

// gpr8Views: AL, CL, DL, BL, AH, CH, DH, BH. The high-byte views (4-7) alias
// the low registers' cells with a shift of 8.
var gpr8Views = [8]RegView{
	{Cell: RegEAX, Mask: 0xFF, CarryBit: 8, SignBit: 7},
	{Cell: RegECX, Mask: 0xFF, CarryBit: 8, SignBit: 7},
	{Cell: RegEDX, Mask: 0xFF, CarryBit: 8, SignBit: 7},
	{Cell: RegEBX, Mask: 0xFF, CarryBit: 8, SignBit: 7},
	{Cell: RegEAX, Mask: 0xFF, Shift: 8, CarryBit: 8, SignBit: 7},
	{Cell: RegECX, Mask: 0xFF, Shift: 8, CarryBit: 8, SignBit: 7},
	{Cell: RegEDX, Mask: 0xFF, Shift: 8, CarryBit: 8, SignBit: 7},
	{Cell: RegEBX, Mask: 0xFF, Shift: 8, CarryBit: 8, SignBit: 7},
}

// RegView32/16/8 look up the static view table for a canonical 3-bit
// register index, as produced by a ModR/M reg or rm field.
func RegView32(idx byte) RegView { return gpr32Views[idx&7] }
func RegView16(idx byte) RegView { return gpr16Views[idx&7] }
func RegView8(idx byte) RegView  { return gpr8Views[idx&7] }

// Registers holds the eight 32-bit general-purpose cells. Sub-registers are
// not stored separately; they are views computed on demand over these cells.
type Registers struct {
	cells [numCells]uint32
}

// ReadView returns the value of a register view, masked and shifted. The
// sentinel view always reads as zero.
func (r *Registers) ReadView(v RegView) uint32 {
	if v.Cell == sentinelCell {
		return 0
	}
	return (r.cells[v.Cell] >> v.Shift) & v.Mask
}

// WriteView writes val into the bits of the cell covered by the view,
// preserving the other bits. Writing the sentinel view is a no-op (the
// caller distinguishes "used as scale_reg" from "used as a destination" and
// raises ErrOperandFault itself in the latter case).
func (r *Registers) WriteView(v RegView, val uint32) {
	if v.Cell == sentinelCell {
		return
	}
	cell := &r.cells[v.Cell]
	*cell = (*cell &^ (v.Mask << v.Shift)) | ((val & v.Mask) << v.Shift)
}

// Get32/Set32 are convenience accessors for the raw 32-bit cells, used by
// handlers that always operate on a full GPR (PUSHAD/POPAD, the stack
// primitives, LOOP/RET, string ops).
func (r *Registers) Get32(idx int) uint32    { return r.cells[idx] }
func (r *Registers) Set32(idx int, v uint32) { r.cells[idx] = v }
