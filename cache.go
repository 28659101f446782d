package x86stub

// cacheSize is the number of direct-mapped slots; must be a power of two so
// the index can be taken with a mask rather than a modulo.
const cacheSize = 1024

// hash32shift is the Wang 32-bit integer mix function the specification
// names explicitly (§3/§4.3), matching `hash32shift` in
// original_source/clamemu/emulator.c.
func hash32shift(key uint32) uint32 {
	key = ^key + (key << 15)
	key = key ^ (key >> 12)
	key = key + (key << 2)
	key = key ^ (key >> 4)
	key = key * 2057 // key * (1 + (1<<3) + (1<<11))
	key = key ^ (key >> 16)
	return key
}

// decodeCache is a direct-mapped hash table keyed by program counter. It is
// deliberately not a real cache: per §9, the implementation it reproduces
// always redecodes at pc and overwrites the slot unconditionally, without
// validating slot-vs-pc or invalidating on writes to executable memory. Do
// not rely on cache-hit semantics, and do not "fix" this — it is a named
// open issue (stale slot, self-modifying code) rather than a bug to silently
// correct here.
type decodeCache struct {
	slots [cacheSize]DecodedInstruction
}

// fetch decodes the instruction at pc via dec, unconditionally overwrites
// the direct-mapped slot, and returns the freshly decoded instruction. The
// slot write has no effect on the return value; it exists only to match the
// source's cache-population side effect for anyone inspecting cache state.
func (dc *decodeCache) fetch(vmm VMM, dec Decoder, pc uint32) (DecodedInstruction, error) {
	instr, err := dec.Decode(vmm, pc)
	if err != nil {
		return DecodedInstruction{}, err
	}
	dc.slots[hash32shift(pc)&(cacheSize-1)] = instr
	return instr, nil
}
