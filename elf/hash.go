package elf

const HASH_WORD_SIZE = 4

// SysV dynamic symbol hash, https://www.uclibc.org/docs/elf-64-gen.pdf p17.
// The on-image table layout is nbuckets, nchain, buckets[], chains[], all
// 32-bit little-endian words; nchain equals the dynamic symbol count.
func HashSymbolName(name string) uint32 {
	var h uint32 = 0
	var g uint32
	for _, nameByte := range []byte(name) {
		h = (h << 4) + uint32(nameByte)
		g = h & 0xf0000000
		if g != 0 {
			h ^= g >> 24
		}
		h &= ^g
	}
	return h
}
