package elf

// names based on official ELF spec (changed due to Go privacy model), types simplified to limit typecasting
// only ELF_64 little-endian x86-64 is supported, and only to the degree the loader needs

const ELF_HEADER_SIZE = 64
const PROGRAM_HEADER_SIZE = 56
const SECTION_HEADER_SIZE = 64
const SYMBOL_SIZE = 24
const RELA_ENTRY_SIZE = 24
const DYNAMIC_ENTRY_SIZE = 16

const (
	EI_MAG0    = 0
	EI_MAG1    = 1
	EI_MAG2    = 2
	EI_MAG3    = 3
	EI_CLASS   = 4
	EI_DATA    = 5
	EI_VERSION = 6
)

const ELF_CLASS_64 = 2
const ELF_DATA_LSB = 1
const ELF_VERSION_CURRENT = 1
const ELF_MACHINE_X86_64 = 62

type ObjectType = uint16

const (
	RELOCATABLE_FILE   ObjectType = 1
	EXECUTABLE_FILE    ObjectType = 2
	SHARED_OBJECT_FILE ObjectType = 3
)

type SegmentType uint32

const (
	PT_NULL SegmentType = iota
	PT_LOAD
	PT_DYNAMIC
	PT_INTERP
	PT_NOTE
	PT_SHLIB
	PT_PHDR
	PT_TLS
)

type SegmentFlag uint32

const (
	PF_X SegmentFlag = 0x1
	PF_W SegmentFlag = 0x2
	PF_R SegmentFlag = 0x4
)

const SHN_UNDEF = 0

type SymbolBinding uint8

const (
	SB_LOCAL  SymbolBinding = 0
	SB_GLOBAL SymbolBinding = 1
	SB_WEAK   SymbolBinding = 2
)

type SymbolType uint8

const (
	ST_NOTYPE  SymbolType = 0
	ST_OBJECT  SymbolType = 1
	ST_FUNC    SymbolType = 2
	ST_SECTION SymbolType = 3
	ST_FILE    SymbolType = 4
)

type RelocationType uint32

const (
	R_X86_64_NONE      RelocationType = 0
	R_X86_64_64        RelocationType = 1
	R_X86_64_PC32      RelocationType = 2
	R_X86_64_GLOB_DAT  RelocationType = 6
	R_X86_64_JUMP_SLOT RelocationType = 7
	R_X86_64_RELATIVE  RelocationType = 8
)

type DynamicTag = uint64

const (
	DT_NULL DynamicTag = iota
	DT_NEEDED
	DT_PLTRELSZ
	DT_PLTGOT
	DT_HASH
	DT_STRTAB
	DT_SYMTAB
	DT_RELA
	DT_RELASZ
	DT_RELAENT
	DT_STRSZ
	DT_SYMENT
	DT_INIT
	DT_FINI
	DT_SONAME
	DT_RPATH
	DT_SYMBOLIC
	DT_REL
	DT_RELSZ
	DT_RELENT
	DT_PLTREL
	DT_DEBUG
	DT_TEXTREL
	DT_JMPREL
	DT_BIND_NOW
	DT_INIT_ARRAY
	DT_FINI_ARRAY
	DT_INIT_ARRAYSZ
	DT_FINI_ARRAYSZ
)

type Header struct {
	Eident     [16]uint8
	Etype      uint16
	Emachine   uint16
	Eversion   uint32
	Eentry     uint64
	Ephoff     uint64
	Eshoff     uint64
	Eflags     uint32
	Eehsize    uint16
	Ephentsize uint16
	Ephnum     uint16
	Eshentsize uint16
	Eshnum     uint16
	Eshstrndx  uint16
}

type ProgramHeader struct {
	Ptype   uint32
	Pflags  uint32
	Poffset uint64
	Pvaddr  uint64
	Ppaddr  uint64
	Pfilesz uint64
	Pmemsz  uint64
	Palign  uint64
}

type SectionHeader struct {
	Sname      uint32
	Stype      uint32
	Sflags     uint64
	Saddr      uint64
	Soffset    uint64
	Ssize      uint64
	Slink      uint32
	Sinfo      uint32
	Saddralign uint64
	Sentsize   uint64
}

type Symbol struct {
	Sname  uint32
	Sinfo  uint8
	Sother uint8
	Sshndx uint16
	Svalue uint64
	Ssize  uint64
}

type RelaEntry struct {
	Roffset uint64
	Rinfo   uint64
	Raddend int64
}

type DynamicEntry struct {
	Dtag      DynamicTag
	DvalOrPtr uint64
}

func (p *ProgramHeader) IsReadable() bool {
	return p.Pflags&uint32(PF_R) != 0
}

func (p *ProgramHeader) IsWritable() bool {
	return p.Pflags&uint32(PF_W) != 0
}

func (p *ProgramHeader) IsExecutable() bool {
	return p.Pflags&uint32(PF_X) != 0
}

func (s *Symbol) Binding() SymbolBinding {
	return SymbolBinding(s.Sinfo >> 4)
}

func (s *Symbol) Type() SymbolType {
	return SymbolType(s.Sinfo & 0xF)
}

func (s *Symbol) IsDefined() bool {
	return s.Sshndx != SHN_UNDEF
}

func (r *RelaEntry) RelocationType() RelocationType {
	return RelocationType(r.Rinfo & 0xFFFFFFFF)
}

func (r *RelaEntry) SymbolIdx() uint32 {
	return uint32(r.Rinfo >> 32)
}

func EncodeSymbolInfo(symbolBind SymbolBinding, symbolType SymbolType) uint8 {
	return (uint8(symbolBind) << 4) + (uint8(symbolType) & 0xF)
}

func EncodeRelocationInfo(symbolIdx uint32, relocationType RelocationType) uint64 {
	return uint64(relocationType) | (uint64(symbolIdx) << 32)
}
