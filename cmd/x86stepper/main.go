// Command x86stepper is a debug/demo harness over the reference VMM and
// fake decoder: it builds a small synthetic memory image, wires a fixed
// import table, and single-steps it while printing dbgstate traces. It is
// not the PE loader or production CLI harness the specification places out
// of scope — it never parses a real PE file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	x86stub "github.com/hollow-stub/x86stub"
	"github.com/hollow-stub/x86stub/internal/fakedecoder"
	"github.com/hollow-stub/x86stub/internal/fakevmm"
)

var (
	maxSteps int
	verbose  bool
)

func main() {
	root := &cobra.Command{
		Use:   "x86stepper",
		Short: "Single-step a synthetic x86 program through the emulation core",
		RunE:  run,
	}
	root.Flags().IntVar(&maxSteps, "steps", 64, "maximum number of steps to execute")
	root.Flags().BoolVar(&verbose, "verbose", false, "print register state after every step")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sampleProgram builds a small instruction stream exercising MOV, XOR, INC,
// a loop, and a terminating RET (which pops the MAPPING_END sentinel):
//
//	B8 05 00 00 00      MOV EAX, 5
//	31 C9               XOR ECX, ECX
//	41 (loop:) INC ECX
//	E2 FD               LOOP loop
//	C3                  RET
func sampleProgram() []byte {
	return []byte{
		0xB8, 0x05, 0x00, 0x00, 0x00, // MOV EAX, 5
		0x31, 0xC9, // XOR ECX, ECX
		0x41,       // INC ECX
		0xE2, 0xFD, // LOOP loop (back to INC ECX)
		0xC3, // RET
	}
}

func run(cmd *cobra.Command, args []string) error {
	vmm := fakevmm.New(1 << 20)
	prog := sampleProgram()
	imageBase, err := vmm.Alloc(uint32(len(prog)))
	if err != nil {
		return err
	}
	if err := vmm.LoadBytes(imageBase, prog); err != nil {
		return err
	}

	// Seed the stack reserve size the lifecycle reads from the PE optional
	// header. The image region was reserved above via Alloc first, so the
	// stack NewEmulator allocates lands above the loaded program rather
	// than overlapping it.
	pe := x86stub.PEOptionalHeader{
		AddressOfEntryPoint: imageBase,
		SizeOfStackReserve:  0x10000,
	}

	emu, err := x86stub.NewEmulator(vmm, fakedecoder.New(), pe)
	if err != nil {
		return err
	}

	for i := 0; i < maxSteps; i++ {
		if verbose {
			fmt.Printf("-- step %d --\n", i)
			emu.Dbgstate(os.Stdout)
		}
		if err := emu.Step(); err != nil {
			if err == x86stub.ErrProgramExited {
				fmt.Println("program exited")
				emu.Dbgstate(os.Stdout)
				return nil
			}
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	fmt.Printf("stopped after %d steps (limit reached)\n", maxSteps)
	emu.Dbgstate(os.Stdout)
	return nil
}
