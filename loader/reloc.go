package loader

import (
	"github.com/Fl0k3n/kload/elf"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// relocateAll patches every loaded object in exactly two ordered passes:
// pass 1 applies the general relocation tables of all objects, pass 2 the
// PLT/jump-slot tables. Jump slots are bound eagerly at load time; there is
// no lazy trap-and-resolve path.
func (l *Loader) relocateAll(s *session) error {
	for _, obj := range s.objects {
		if obj.Dyn == nil {
			continue
		}
		if err := l.applyRelaTable(s, obj, obj.Dyn.RelaAddr, obj.Dyn.RelaSize); err != nil {
			return errors.Wrapf(err, "General relocations of %q", obj.Name)
		}
	}
	for _, obj := range s.objects {
		if obj.Dyn == nil {
			continue
		}
		if err := l.applyRelaTable(s, obj, obj.Dyn.JmpRelAddr, obj.Dyn.JmpRelSize); err != nil {
			return errors.Wrapf(err, "Jump-slot relocations of %q", obj.Name)
		}
	}
	level.Debug(s.logger).Log("msg", "relocation finished", "objects", len(s.objects))
	return nil
}

func (l *Loader) applyRelaTable(s *session, obj *LoadedObject, tableAddr uint64, tableSize uint64) error {
	if tableAddr == 0 || tableSize == 0 {
		return nil
	}
	if tableSize%elf.RELA_ENTRY_SIZE != 0 {
		return errors.Wrapf(elf.ErrMalformedImage, "Relocation table size %d is not a multiple of %d", tableSize, elf.RELA_ENTRY_SIZE)
	}
	for entryAddr := tableAddr; entryAddr < tableAddr+tableSize; entryAddr += elf.RELA_ENTRY_SIZE {
		buff, err := obj.Mem.BytesAt(entryAddr, elf.RELA_ENTRY_SIZE)
		if err != nil {
			return err
		}
		if err := l.applyRelocation(s, obj, elf.RelaEntryFromBytes(buff, 0)); err != nil {
			return err
		}
	}
	return nil
}

// applyRelocation implements the patch formulas, S = resolved symbol value,
// A = addend, B = object base, P = absolute address of the relocation site.
// Every write is bounds-checked against the owning object's mapped regions.
// An unrecognized kind is a hard failure: skipping it would silently corrupt
// the process image.
func (l *Loader) applyRelocation(s *session, obj *LoadedObject, entry *elf.RelaEntry) error {
	site := obj.Base + entry.Roffset
	switch entry.RelocationType() {
	case elf.R_X86_64_NONE:
		return nil
	case elf.R_X86_64_64:
		symbolAddr, err := l.resolveSymbol(s, obj, entry.SymbolIdx())
		if err != nil {
			return err
		}
		l.metrics.relocationApplied("direct")
		return obj.Mem.PutUint64At(site, uint64(int64(symbolAddr)+entry.Raddend))
	case elf.R_X86_64_PC32:
		symbolAddr, err := l.resolveSymbol(s, obj, entry.SymbolIdx())
		if err != nil {
			return err
		}
		l.metrics.relocationApplied("pc_relative")
		return obj.Mem.PutUint32At(site, uint32(int64(symbolAddr)+entry.Raddend-int64(site)))
	case elf.R_X86_64_GLOB_DAT:
		symbolAddr, err := l.resolveSymbol(s, obj, entry.SymbolIdx())
		if err != nil {
			return err
		}
		l.metrics.relocationApplied("glob_data")
		return obj.Mem.PutUint64At(site, symbolAddr)
	case elf.R_X86_64_JUMP_SLOT:
		symbolAddr, err := l.resolveSymbol(s, obj, entry.SymbolIdx())
		if err != nil {
			return err
		}
		l.metrics.relocationApplied("jump_slot")
		return obj.Mem.PutUint64At(site, symbolAddr)
	case elf.R_X86_64_RELATIVE:
		l.metrics.relocationApplied("base_relative")
		return obj.Mem.PutUint64At(site, uint64(int64(obj.Base)+entry.Raddend))
	default:
		return errors.Wrapf(ErrUnsupportedRelocation, "Type %d at site 0x%x of %q", entry.RelocationType(), site, obj.Name)
	}
}
