package loader

import (
	"github.com/Fl0k3n/kload/elf"
	"github.com/pkg/errors"
)

// processDynamicInfo walks the PT_DYNAMIC entries of a freshly mapped object
// into a DynamicInfo. An object with no PT_DYNAMIC segment (a statically
// linked executable) keeps Dyn == nil and skips dependency and relocation
// work entirely. Unrecognized tags are ignored for forward compatibility.
func (l *Loader) processDynamicInfo(obj *LoadedObject, file *elf.File) error {
	dynamicHdr, ok := file.SegmentOfType(elf.PT_DYNAMIC)
	if !ok {
		return nil
	}
	dyn := &DynamicInfo{NeededNames: []string{}}
	neededStrtabOffsets := []uint64{}

	entryAddr := obj.Base + dynamicHdr.Pvaddr
	segmentEnd := entryAddr + dynamicHdr.Pmemsz
	terminated := false
	for ; entryAddr+elf.DYNAMIC_ENTRY_SIZE <= segmentEnd; entryAddr += elf.DYNAMIC_ENTRY_SIZE {
		buff, err := obj.Mem.BytesAt(entryAddr, elf.DYNAMIC_ENTRY_SIZE)
		if err != nil {
			return errors.Wrapf(err, "Dynamic table of %q", obj.Name)
		}
		entry := elf.DynamicEntryFromBytes(buff, 0)
		if entry.Dtag == elf.DT_NULL {
			terminated = true
			break
		}
		switch entry.Dtag {
		case elf.DT_NEEDED:
			neededStrtabOffsets = append(neededStrtabOffsets, entry.DvalOrPtr)
		case elf.DT_STRTAB:
			dyn.StrtabAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_SYMTAB:
			dyn.SymtabAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_HASH:
			dyn.HashAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_PLTGOT:
			dyn.PltGotAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_JMPREL:
			dyn.JmpRelAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_PLTRELSZ:
			dyn.JmpRelSize = entry.DvalOrPtr
		case elf.DT_RELA:
			dyn.RelaAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_RELASZ:
			dyn.RelaSize = entry.DvalOrPtr
		case elf.DT_INIT:
			dyn.InitAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_FINI:
			dyn.FiniAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_INIT_ARRAY:
			dyn.InitArrayAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_INIT_ARRAYSZ:
			dyn.InitArraySize = entry.DvalOrPtr
		case elf.DT_FINI_ARRAY:
			dyn.FiniArrayAddr = obj.Base + entry.DvalOrPtr
		case elf.DT_FINI_ARRAYSZ:
			dyn.FiniArraySize = entry.DvalOrPtr
		}
	}
	if !terminated {
		return errors.Wrapf(elf.ErrMalformedImage, "Dynamic table of %q has no null terminator", obj.Name)
	}

	obj.Dyn = dyn
	for _, strtabOffset := range neededStrtabOffsets {
		if dyn.StrtabAddr == 0 {
			return errors.Wrapf(elf.ErrMalformedImage, "%q has needed-library entries but no string table", obj.Name)
		}
		name, err := obj.dynString(strtabOffset)
		if err != nil {
			return errors.Wrapf(err, "Needed-library name of %q", obj.Name)
		}
		dyn.NeededNames = append(dyn.NeededNames, name)
	}
	return nil
}
