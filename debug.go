package x86stub

import (
	"fmt"
	"io"
)

// RegisterInfo is a single named value in a debug snapshot, grounded on the
// teacher's DebugX86.GetRegisters() pattern: a flat, host-friendly
// introspection shape rather than exposing the register cells directly.
type RegisterInfo struct {
	Name     string
	BitWidth int
	Value    uint32
}

// DebugState returns a snapshot of the eight GPRs, EIP, EFLAGS, and the
// flags-defined mask, for host diagnostics and tests. This is the ambient
// observability surface the distilled specification only names as
// dbgstate.
func (e *Emulator) DebugState() []RegisterInfo {
	names := [8]string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI"}
	out := make([]RegisterInfo, 0, 11)
	for i, n := range names {
		out = append(out, RegisterInfo{Name: n, BitWidth: 32, Value: e.regs.Get32(i)})
	}
	out = append(out, RegisterInfo{Name: "EIP", BitWidth: 32, Value: e.eip})
	out = append(out, RegisterInfo{Name: "EFLAGS", BitWidth: 32, Value: e.flags.Eflags})
	out = append(out, RegisterInfo{Name: "EFLAGS_DEFINED", BitWidth: 32, Value: e.flags.Defined})
	return out
}

// Dbgstate writes a one-line-per-register diagnostic dump to w, in the
// register-dump style of cli_emulator_dbgstate in the source this
// specification was distilled from.
func (e *Emulator) Dbgstate(w io.Writer) {
	for _, r := range e.DebugState() {
		fmt.Fprintf(w, "%-14s = %#0*x\n", r.Name, r.BitWidth/4+2, r.Value)
	}
}

// Register returns a single named register's value, or (0, false) if name
// is not one of the GPRs/EIP/EFLAGS/EFLAGS_DEFINED.
func (e *Emulator) Register(name string) (uint32, bool) {
	for _, r := range e.DebugState() {
		if r.Name == name {
			return r.Value, true
		}
	}
	return 0, false
}
