package x86stub_test

import (
	"errors"
	"testing"

	x86stub "github.com/hollow-stub/x86stub"
	"github.com/hollow-stub/x86stub/internal/fakedecoder"
	"github.com/hollow-stub/x86stub/internal/fakevmm"
)

// End-to-end: MOV EAX,5 / XOR ECX,ECX / INC ECX / LOOP / RET, decoded from
// real x86 bytes by fakedecoder over fakevmm (rather than the in-package
// hand-built doubles), terminating cleanly on the MAPPING_END sentinel.
func TestSampleProgramRunsToCompletion(t *testing.T) {
	vmm := fakevmm.New(1 << 16)
	program := []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // MOV EAX, 5
		0x31, 0xC9, // XOR ECX, ECX
		0x41,       // INC ECX
		0xE2, 0xFD, // LOOP loop
		0xC3, // RET
	}
	if err := vmm.LoadBytes(0, program); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	pe := x86stub.PEOptionalHeader{AddressOfEntryPoint: 0, SizeOfStackReserve: 0x10000}
	emu, err := x86stub.NewEmulator(vmm, fakedecoder.New(), pe)
	if err != nil {
		t.Fatalf("NewEmulator: %v", err)
	}

	var steps int
	for steps = 0; steps < 100; steps++ {
		if err := emu.Step(); err != nil {
			if errors.Is(err, x86stub.ErrProgramExited) {
				break
			}
			t.Fatalf("Step() %d: %v", steps, err)
		}
	}
	if steps >= 100 {
		t.Fatal("program did not terminate within 100 steps")
	}

	if got, _ := emu.Register("EAX"); got != 5 {
		t.Fatalf("EAX = %d, want 5", got)
	}
	// XOR ECX,ECX, one INC ECX, then LOOP decrements to 0 and falls through
	// without branching (LOOP never re-executes the body itself).
	if got, _ := emu.Register("ECX"); got != 0 {
		t.Fatalf("ECX = %d, want 0", got)
	}
}

// An import trapped at the entry point itself models a stub whose only job
// is to call straight into an imported routine: the generic stdcall handler
// pops the construction-time MAPPING_END sentinel as its return address,
// ending the run. The emulator is wired to fakedecoder and fakevmm; the trap
// fires before fetch, so the decoder is never consulted.
func TestImportTrapThroughRealDecoderPipeline(t *testing.T) {
	vmm := fakevmm.New(1 << 16)
	trapAddr := uint32(0)

	called := false
	vmm.RegisterImport(trapAddr, x86stub.NewGenericStdcallImport("User32.dll!MessageBoxA", 16, func(*x86stub.Emulator) error {
		called = true
		return nil
	}))

	pe := x86stub.PEOptionalHeader{AddressOfEntryPoint: 0, SizeOfStackReserve: 0x10000}
	emu, err := x86stub.NewEmulator(vmm, fakedecoder.New(), pe)
	if err != nil {
		t.Fatalf("NewEmulator: %v", err)
	}

	if err := emu.Step(); err != nil {
		t.Fatalf("Step() trap: %v", err)
	}
	if !called {
		t.Fatal("import handler did not run")
	}
	if emu.EIP() != x86stub.MappingEnd {
		t.Fatalf("EIP = %#x after the trapped call returned, want MAPPING_END", emu.EIP())
	}
}
