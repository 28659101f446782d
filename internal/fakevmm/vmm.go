// Package fakevmm is an in-memory, paged virtual-memory-manager test double
// implementing x86stub.VMM. It is a reference/test implementation only — a
// production VMM (RVA/VA translation against a real mapped PE image, page
// protection) is an external collaborator the core only consumes through an
// interface (spec §1).
//
// Grounded on memory_bus.go's SystemBus: a contiguous byte slice guarded by
// a sync.RWMutex, little-endian sized accessors, and an address-keyed map of
// import-trap records in place of SystemBus's MMIO IORegion callbacks.
package fakevmm

import (
	"encoding/binary"
	"fmt"
	"sync"

	x86stub "github.com/hollow-stub/x86stub"
)

const pageSize = 0x1000

// VMM is a flat, little-endian address space backed by a single byte slice,
// with a bump allocator and an import-trap table keyed by exact address.
type VMM struct {
	mu   sync.RWMutex
	mem  []byte
	next uint32

	imports map[uint32]x86stub.ImportDesc
}

// New creates a VMM over size bytes of anonymous memory.
func New(size uint32) *VMM {
	return &VMM{
		mem:     make([]byte, size),
		imports: make(map[uint32]x86stub.ImportDesc),
	}
}

// Alloc bump-allocates size bytes (rounded up to a page) and returns the
// base address.
func (v *VMM) Alloc(size uint32) (uint32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	aligned := (size + pageSize - 1) &^ (pageSize - 1)
	base := v.next
	if uint64(base)+uint64(aligned) > uint64(len(v.mem)) {
		return 0, fmt.Errorf("fakevmm: out of address space allocating %d bytes", size)
	}
	v.next += aligned
	return base, nil
}

// RVA2VA is the identity mapping for this reference VMM: the synthetic
// image built by callers (e.g. the demo CLI) is always loaded at VA 0.
func (v *VMM) RVA2VA(rva uint32) uint32 { return rva }

func (v *VMM) bounds(addr uint32, n uint32) error {
	if uint64(addr)+uint64(n) > uint64(len(v.mem)) {
		return fmt.Errorf("fakevmm: access out of range at %#x (len %d)", addr, n)
	}
	return nil
}

func (v *VMM) Read8(addr uint32) (byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.bounds(addr, 1); err != nil {
		return 0, err
	}
	return v.mem[addr], nil
}

func (v *VMM) Read16(addr uint32) (uint16, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.bounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v.mem[addr:]), nil
}

func (v *VMM) Read32(addr uint32) (uint32, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.bounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.mem[addr:]), nil
}

func (v *VMM) Write8(addr uint32, val byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.bounds(addr, 1); err != nil {
		return err
	}
	v.mem[addr] = val
	return nil
}

func (v *VMM) Write16(addr uint32, val uint16) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.bounds(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(v.mem[addr:], val)
	return nil
}

func (v *VMM) Write32(addr uint32, val uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.bounds(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(v.mem[addr:], val)
	return nil
}

// LoadBytes copies a program image into memory at addr, for test and demo
// setup.
func (v *VMM) LoadBytes(addr uint32, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.bounds(addr, uint32(len(data))); err != nil {
		return err
	}
	copy(v.mem[addr:], data)
	return nil
}

// RegisterImport installs an import descriptor at a trap address.
func (v *VMM) RegisterImport(addr uint32, desc x86stub.ImportDesc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.imports[addr] = desc
}

// GetImport reports whether addr is a registered trap address.
func (v *VMM) GetImport(addr uint32) (x86stub.ImportDesc, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.imports[addr]
	return d, ok
}
