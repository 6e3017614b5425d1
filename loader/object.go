package loader

import (
	"github.com/Fl0k3n/kload/elf"
	"github.com/Fl0k3n/kload/memory"
	"github.com/pkg/errors"
)

// DynamicInfo is the structured form of an object's PT_DYNAMIC table. All
// address fields are absolute (object base already added); size and count
// fields are scalars. A zero address means the tag was absent.
type DynamicInfo struct {
	StrtabAddr    uint64
	SymtabAddr    uint64
	HashAddr      uint64
	PltGotAddr    uint64
	JmpRelAddr    uint64
	JmpRelSize    uint64
	RelaAddr      uint64
	RelaSize      uint64
	InitAddr      uint64
	FiniAddr      uint64
	InitArrayAddr uint64
	InitArraySize uint64
	FiniArrayAddr uint64
	FiniArraySize uint64
	NeededNames   []string
}

// LoadedObject lives for the whole process lifetime; teardown of its mapped
// regions happens with the owning address space, outside this subsystem.
type LoadedObject struct {
	Name       string
	Base       uint64
	EntryPoint uint64 // meaningful for the main executable only
	Mem        *memory.Space
	Dyn        *DynamicInfo // nil for statically linked objects
	Deps       []*LoadedObject
	InterpPath string
	TlsMemSize uint64
	TlsAlign   uint64
	Digest     uint64

	programHeaders []elf.ProgramHeader
}

func newLoadedObject(name string, base uint64) *LoadedObject {
	return &LoadedObject{
		Name: name,
		Base: base,
		Mem:  memory.NewSpace(),
		Deps: []*LoadedObject{},
	}
}

func (o *LoadedObject) dynString(strtabOffset uint64) (string, error) {
	return o.Mem.CStringAt(o.Dyn.StrtabAddr + strtabOffset)
}

func (o *LoadedObject) symbolAt(symIdx uint32) (*elf.Symbol, error) {
	buff, err := o.Mem.BytesAt(o.Dyn.SymtabAddr+uint64(symIdx)*elf.SYMBOL_SIZE, elf.SYMBOL_SIZE)
	if err != nil {
		return nil, errors.Wrapf(err, "Symbol %d of %q", symIdx, o.Name)
	}
	return elf.SymbolFromBytes(buff, 0), nil
}

func (o *LoadedObject) symbolName(sym *elf.Symbol) (string, error) {
	return o.dynString(uint64(sym.Sname))
}

// lookupDefinition searches the object's SysV hash table for a defined symbol
// with the given name. Objects without a hash table export nothing. The walk
// is capped at nchain steps so a corrupt chain cannot loop forever.
func (o *LoadedObject) lookupDefinition(name string) (sym *elf.Symbol, found bool, err error) {
	if o.Dyn == nil || o.Dyn.HashAddr == 0 || o.Dyn.SymtabAddr == 0 || o.Dyn.StrtabAddr == 0 {
		return nil, false, nil
	}
	nbuckets, err := o.Mem.Uint32At(o.Dyn.HashAddr)
	if err != nil {
		return nil, false, err
	}
	nchain, err := o.Mem.Uint32At(o.Dyn.HashAddr + elf.HASH_WORD_SIZE)
	if err != nil {
		return nil, false, err
	}
	if nbuckets == 0 {
		return nil, false, nil
	}
	bucketsAddr := o.Dyn.HashAddr + 2*elf.HASH_WORD_SIZE
	chainsAddr := bucketsAddr + uint64(nbuckets)*elf.HASH_WORD_SIZE

	bucketIdx := elf.HashSymbolName(name) % nbuckets
	symIdx, err := o.Mem.Uint32At(bucketsAddr + uint64(bucketIdx)*elf.HASH_WORD_SIZE)
	if err != nil {
		return nil, false, err
	}
	for steps := uint32(0); symIdx != elf.SHN_UNDEF && steps < nchain; steps++ {
		candidate, err := o.symbolAt(symIdx)
		if err != nil {
			return nil, false, err
		}
		candidateName, err := o.symbolName(candidate)
		if err != nil {
			return nil, false, err
		}
		if candidateName == name && candidate.IsDefined() {
			return candidate, true, nil
		}
		symIdx, err = o.Mem.Uint32At(chainsAddr + uint64(symIdx)*elf.HASH_WORD_SIZE)
		if err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}
