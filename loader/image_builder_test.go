package loader

import (
	"testing"

	"github.com/Fl0k3n/kload/elf"
	"github.com/Fl0k3n/kload/memory"
	"github.com/Fl0k3n/kload/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// imageBuilder assembles syntactically valid ELF64 images for load tests:
// one RWX PT_LOAD segment at TEST_SEG_VADDR holding payload, dynamic string
// and symbol tables, a single-bucket SysV hash, relocation tables, the init
// array and the dynamic table, plus optional PT_DYNAMIC/PT_INTERP/PT_TLS
// headers describing them.

const TEST_SEG_VADDR = 0x1000
const TEST_SEG_FOFF = 0x1000
const TEST_PAYLOAD_SIZE = 0x200

type testSym struct {
	name    string
	value   uint64
	defined bool
}

type imageBuilder struct {
	etype     uint16
	entry     uint64
	payload   []byte
	bssSize   uint64
	needed    []string
	syms      []testSym
	relas     []elf.RelaEntry
	jmprels   []elf.RelaEntry
	initFn    uint64
	initArray []uint64
	interp    string
	tlsSize   uint64
	tlsAlign  uint64

	// set by build, so tests can address the segment tail precisely
	builtFilesz uint64
	builtMemsz  uint64
}

func newExecBuilder(entry uint64) *imageBuilder {
	return &imageBuilder{
		etype:   elf.EXECUTABLE_FILE,
		entry:   entry,
		payload: make([]byte, TEST_PAYLOAD_SIZE),
	}
}

func newLibBuilder() *imageBuilder {
	return &imageBuilder{
		etype:   elf.SHARED_OBJECT_FILE,
		payload: make([]byte, TEST_PAYLOAD_SIZE),
	}
}

func (b *imageBuilder) withEntry(vaddr uint64) *imageBuilder {
	b.entry = vaddr
	return b
}

func (b *imageBuilder) withPayload(payload []byte) *imageBuilder {
	b.payload = payload
	return b
}

func (b *imageBuilder) withBss(size uint64) *imageBuilder {
	b.bssSize = size
	return b
}

func (b *imageBuilder) withNeeded(names ...string) *imageBuilder {
	b.needed = append(b.needed, names...)
	return b
}

func (b *imageBuilder) withSymbol(name string, value uint64, defined bool) *imageBuilder {
	b.syms = append(b.syms, testSym{name: name, value: value, defined: defined})
	return b
}

// symIdx returns the dynamic symbol table index of a previously added symbol
// (index 0 is the null symbol).
func (b *imageBuilder) symIdx(name string) uint32 {
	for i, sym := range b.syms {
		if sym.name == name {
			return uint32(i + 1)
		}
	}
	panic("No such test symbol: " + name)
}

func (b *imageBuilder) withRela(siteVaddr uint64, symName string, relocType elf.RelocationType, addend int64) *imageBuilder {
	var symIdx uint32 = 0
	if symName != "" {
		symIdx = b.symIdx(symName)
	}
	b.relas = append(b.relas, elf.RelaEntry{
		Roffset: siteVaddr,
		Rinfo:   elf.EncodeRelocationInfo(symIdx, relocType),
		Raddend: addend,
	})
	return b
}

func (b *imageBuilder) withJmpRel(siteVaddr uint64, symName string, addend int64) *imageBuilder {
	b.jmprels = append(b.jmprels, elf.RelaEntry{
		Roffset: siteVaddr,
		Rinfo:   elf.EncodeRelocationInfo(b.symIdx(symName), elf.R_X86_64_JUMP_SLOT),
		Raddend: addend,
	})
	return b
}

func (b *imageBuilder) withInit(vaddr uint64) *imageBuilder {
	b.initFn = vaddr
	return b
}

// withInitArray takes link-time vaddrs; for shared objects the builder emits
// base-relative relocations for the array slots, the way a real link editor
// fixes init arrays of relocatable objects.
func (b *imageBuilder) withInitArray(vaddrs ...uint64) *imageBuilder {
	b.initArray = append(b.initArray, vaddrs...)
	return b
}

func (b *imageBuilder) withInterp(path string) *imageBuilder {
	b.interp = path
	return b
}

func (b *imageBuilder) withTls(memSize uint64, align uint64) *imageBuilder {
	b.tlsSize = memSize
	b.tlsAlign = align
	return b
}

func (b *imageBuilder) hasDynamic() bool {
	return b.etype == elf.SHARED_OBJECT_FILE || len(b.needed)+len(b.syms)+len(b.relas)+len(b.jmprels)+len(b.initArray) > 0 || b.initFn != 0
}

func align8(v uint64) uint64 {
	return (v + 7) &^ 7
}

func (b *imageBuilder) build() []byte {
	strtab := []byte{0}
	strtabOffsets := map[string]uint64{}
	putString := func(s string) uint64 {
		if off, ok := strtabOffsets[s]; ok {
			return off
		}
		off := uint64(len(strtab))
		strtabOffsets[s] = off
		strtab = append(strtab, []byte(s)...)
		strtab = append(strtab, 0)
		return off
	}
	for _, name := range b.needed {
		putString(name)
	}
	for _, sym := range b.syms {
		putString(sym.name)
	}

	symCount := uint64(len(b.syms) + 1)
	hashWords := uint64(2 + 1 + len(b.syms) + 1)
	relas := append([]elf.RelaEntry{}, b.relas...)
	autoRelativeSlots := 0
	if b.etype == elf.SHARED_OBJECT_FILE {
		for _, vaddr := range b.initArray {
			if vaddr != 0 && vaddr != ^uint64(0) {
				autoRelativeSlots++
			}
		}
	}

	payloadOff := uint64(0)
	dynstrOff := align8(uint64(len(b.payload)))
	dynsymOff := align8(dynstrOff + uint64(len(strtab)))
	hashOff := dynsymOff + symCount*elf.SYMBOL_SIZE
	relaOff := align8(hashOff + hashWords*elf.HASH_WORD_SIZE)
	jmprelOff := relaOff + uint64(len(relas)+autoRelativeSlots)*elf.RELA_ENTRY_SIZE
	initArrOff := jmprelOff + uint64(len(b.jmprels))*elf.RELA_ENTRY_SIZE
	interpOff := initArrOff + uint64(len(b.initArray))*8
	dynOff := align8(interpOff + uint64(len(b.interp)) + 1)

	for i, vaddr := range b.initArray {
		if b.etype == elf.SHARED_OBJECT_FILE && vaddr != 0 && vaddr != ^uint64(0) {
			relas = append(relas, elf.RelaEntry{
				Roffset: TEST_SEG_VADDR + initArrOff + uint64(i)*8,
				Rinfo:   elf.EncodeRelocationInfo(0, elf.R_X86_64_RELATIVE),
				Raddend: int64(vaddr),
			})
			b.initArray[i] = 0
		}
	}

	dynEntries := []elf.DynamicEntry{}
	addDyn := func(tag elf.DynamicTag, val uint64) {
		dynEntries = append(dynEntries, elf.DynamicEntry{Dtag: tag, DvalOrPtr: val})
	}
	if b.hasDynamic() {
		for _, name := range b.needed {
			addDyn(elf.DT_NEEDED, strtabOffsets[name])
		}
		addDyn(elf.DT_STRTAB, TEST_SEG_VADDR+dynstrOff)
		addDyn(elf.DT_SYMTAB, TEST_SEG_VADDR+dynsymOff)
		addDyn(elf.DT_HASH, TEST_SEG_VADDR+hashOff)
		if len(relas) > 0 {
			addDyn(elf.DT_RELA, TEST_SEG_VADDR+relaOff)
			addDyn(elf.DT_RELASZ, uint64(len(relas))*elf.RELA_ENTRY_SIZE)
		}
		if len(b.jmprels) > 0 {
			addDyn(elf.DT_JMPREL, TEST_SEG_VADDR+jmprelOff)
			addDyn(elf.DT_PLTRELSZ, uint64(len(b.jmprels))*elf.RELA_ENTRY_SIZE)
		}
		if b.initFn != 0 {
			addDyn(elf.DT_INIT, b.initFn)
		}
		if len(b.initArray) > 0 {
			addDyn(elf.DT_INIT_ARRAY, TEST_SEG_VADDR+initArrOff)
			addDyn(elf.DT_INIT_ARRAYSZ, uint64(len(b.initArray))*8)
		}
		addDyn(elf.DT_NULL, 0)
	}
	dynSize := uint64(len(dynEntries)) * elf.DYNAMIC_ENTRY_SIZE

	filesz := dynOff + dynSize
	memsz := filesz + b.bssSize
	b.builtFilesz = filesz
	b.builtMemsz = memsz

	phdrs := []elf.ProgramHeader{{
		Ptype:   uint32(elf.PT_LOAD),
		Pflags:  uint32(elf.PF_R | elf.PF_W | elf.PF_X),
		Poffset: TEST_SEG_FOFF,
		Pvaddr:  TEST_SEG_VADDR,
		Ppaddr:  TEST_SEG_VADDR,
		Pfilesz: filesz,
		Pmemsz:  memsz,
		Palign:  memory.PAGE_SIZE,
	}}
	if b.hasDynamic() {
		phdrs = append(phdrs, elf.ProgramHeader{
			Ptype:   uint32(elf.PT_DYNAMIC),
			Pflags:  uint32(elf.PF_R | elf.PF_W),
			Poffset: TEST_SEG_FOFF + dynOff,
			Pvaddr:  TEST_SEG_VADDR + dynOff,
			Ppaddr:  TEST_SEG_VADDR + dynOff,
			Pfilesz: dynSize,
			Pmemsz:  dynSize,
			Palign:  8,
		})
	}
	if b.interp != "" {
		phdrs = append(phdrs, elf.ProgramHeader{
			Ptype:   uint32(elf.PT_INTERP),
			Pflags:  uint32(elf.PF_R),
			Poffset: TEST_SEG_FOFF + interpOff,
			Pvaddr:  TEST_SEG_VADDR + interpOff,
			Ppaddr:  TEST_SEG_VADDR + interpOff,
			Pfilesz: uint64(len(b.interp)) + 1,
			Pmemsz:  uint64(len(b.interp)) + 1,
			Palign:  1,
		})
	}
	if b.tlsSize != 0 {
		phdrs = append(phdrs, elf.ProgramHeader{
			Ptype:  uint32(elf.PT_TLS),
			Pflags: uint32(elf.PF_R),
			Pmemsz: b.tlsSize,
			Palign: b.tlsAlign,
		})
	}

	buff := make([]byte, TEST_SEG_FOFF+filesz)
	copy(buff, testHeaderBytes(b.etype, b.entry, uint16(len(phdrs))))
	for i, phdr := range phdrs {
		copy(buff[elf.ELF_HEADER_SIZE+i*elf.PROGRAM_HEADER_SIZE:], phdr.ToBytes())
	}

	seg := buff[TEST_SEG_FOFF:]
	copy(seg[payloadOff:], b.payload)
	copy(seg[dynstrOff:], strtab)

	symOff := int(dynsymOff) + elf.SYMBOL_SIZE // index 0 stays the null symbol
	for _, sym := range b.syms {
		shndx := uint16(elf.SHN_UNDEF)
		if sym.defined {
			shndx = 1
		}
		record := elf.Symbol{
			Sname:  uint32(strtabOffsets[sym.name]),
			Sinfo:  elf.EncodeSymbolInfo(elf.SB_GLOBAL, elf.ST_FUNC),
			Sshndx: shndx,
			Svalue: sym.value,
		}
		copy(seg[symOff:], record.ToBytes())
		symOff += elf.SYMBOL_SIZE
	}

	// single-bucket SysV hash: bucket head is symbol 1, chains link the rest
	hashValues := []uint32{1, uint32(symCount)}
	if len(b.syms) == 0 {
		hashValues = append(hashValues, 0, 0) // empty bucket, null chain
	} else {
		hashValues = append(hashValues, 1)
		chains := make([]uint32, symCount)
		for i := 1; i < len(b.syms); i++ {
			chains[i] = uint32(i + 1)
		}
		hashValues = append(hashValues, chains...)
	}
	for i, word := range hashValues {
		utils.EncodeUnsignedIntsToLittleEndianU2(seg, int(hashOff)+i*elf.HASH_WORD_SIZE, word)
	}

	relaOffInt := int(relaOff)
	for _, rela := range relas {
		copy(seg[relaOffInt:], rela.ToBytes())
		relaOffInt += elf.RELA_ENTRY_SIZE
	}
	jmprelOffInt := int(jmprelOff)
	for _, rela := range b.jmprels {
		copy(seg[jmprelOffInt:], rela.ToBytes())
		jmprelOffInt += elf.RELA_ENTRY_SIZE
	}
	for i, val := range b.initArray {
		utils.EncodeUnsignedIntsToLittleEndianU2(seg, int(initArrOff)+i*8, val)
	}
	copy(seg[interpOff:], append([]byte(b.interp), 0))
	dynOffInt := int(dynOff)
	for _, entry := range dynEntries {
		copy(seg[dynOffInt:], entry.ToBytes())
		dynOffInt += elf.DYNAMIC_ENTRY_SIZE
	}
	return buff
}

func testHeaderBytes(etype uint16, entry uint64, phnum uint16) []byte {
	hdr := elf.Header{
		Etype:      etype,
		Emachine:   elf.ELF_MACHINE_X86_64,
		Eversion:   elf.ELF_VERSION_CURRENT,
		Eentry:     entry,
		Ephoff:     elf.ELF_HEADER_SIZE,
		Eehsize:    elf.ELF_HEADER_SIZE,
		Ephentsize: elf.PROGRAM_HEADER_SIZE,
		Ephnum:     phnum,
	}
	copy(hdr.Eident[:4], []byte{0x7F, 'E', 'L', 'F'})
	hdr.Eident[elf.EI_CLASS] = elf.ELF_CLASS_64
	hdr.Eident[elf.EI_DATA] = elf.ELF_DATA_LSB
	hdr.Eident[elf.EI_VERSION] = elf.ELF_VERSION_CURRENT
	return hdr.ToBytes()
}

// minimalExecImage is just a header: no program headers, no dynamic info.
func minimalExecImage(entry uint64) []byte {
	return testHeaderBytes(elf.EXECUTABLE_FILE, entry, 0)
}

type recordingInvoker struct {
	calls []uint64
}

func (r *recordingInvoker) Invoke(addr uint64) error {
	r.calls = append(r.calls, addr)
	return nil
}

// dirtyAllocator hands out pages filled with a poison pattern so tests can
// prove the loader zero-fills [filesz, memsz) explicitly instead of relying
// on pre-zeroed frames.
type dirtyAllocator struct {
	inner *memory.SimAllocator
}

func (a *dirtyAllocator) AllocatePages(count uint64) (*memory.PhysRange, error) {
	phys, err := a.inner.AllocatePages(count)
	if err != nil {
		return nil, err
	}
	for i := range phys.Data {
		phys.Data[i] = 0xAA
	}
	return phys, nil
}

type testEnv struct {
	fs      afero.Fs
	alloc   memory.PageAllocator
	mapper  *memory.SimMapper
	invoker *recordingInvoker
	loader  *Loader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithAllocator(t, memory.NewSimAllocator(0))
}

func newTestEnvWithAllocator(t *testing.T, alloc memory.PageAllocator) *testEnv {
	t.Helper()
	env := &testEnv{
		fs:      afero.NewMemMapFs(),
		alloc:   alloc,
		mapper:  memory.NewSimMapper(),
		invoker: &recordingInvoker{},
	}
	env.loader = New(Config{
		Allocator:  env.alloc,
		Mapper:     env.mapper,
		Fs:         env.fs,
		SearchDirs: []string{"/opt/lib", "/lib"},
		Invoker:    env.invoker,
	})
	return env
}

func (e *testEnv) addLibrary(t *testing.T, name string, image []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, "/lib/"+name, image, 0644))
}
