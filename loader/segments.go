package loader

import (
	"github.com/Fl0k3n/kload/elf"
	"github.com/Fl0k3n/kload/memory"
	"github.com/pkg/errors"
)

// mapSegments establishes every PT_LOAD segment of the image in the target
// address space: page-aligned allocation, mapping with permissions derived
// from the segment flags, copy of the file-backed bytes and explicit zero
// fill of the [filesz, memsz) tail. It also records PT_TLS dimensions and the
// PT_INTERP path. Failures are fatal to the load; nothing is unwound here.
func (l *Loader) mapSegments(obj *LoadedObject, file *elf.File) error {
	for i := range file.ProgramHeaders {
		phdr := &file.ProgramHeaders[i]
		switch elf.SegmentType(phdr.Ptype) {
		case elf.PT_LOAD:
			if err := l.mapLoadSegment(obj, file, phdr); err != nil {
				return errors.Wrapf(err, "Mapping segment %d of %q", i, obj.Name)
			}
		case elf.PT_TLS:
			obj.TlsMemSize = phdr.Pmemsz
			obj.TlsAlign = phdr.Palign
		case elf.PT_INTERP:
			if err := l.readInterpPath(obj, file, phdr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) mapLoadSegment(obj *LoadedObject, file *elf.File, phdr *elf.ProgramHeader) error {
	vaddr := obj.Base + phdr.Pvaddr
	mapStart := memory.PageAlignDown(vaddr)
	pageCount := memory.PagesSpanned(vaddr, phdr.Pmemsz)
	if pageCount == 0 {
		return nil
	}
	phys, err := l.allocator.AllocatePages(pageCount)
	if err != nil {
		return errors.Wrapf(ErrAllocationFailed, "%d pages for segment at 0x%x: %v", pageCount, vaddr, err)
	}
	perms := memory.PermsForSegment(phdr.IsReadable(), phdr.IsWritable(), phdr.IsExecutable())
	if err := l.mapper.MapPages(mapStart, phys, perms); err != nil {
		return errors.Wrapf(ErrMappingFailed, "%d pages at 0x%x: %v", pageCount, mapStart, err)
	}
	region := memory.NewRegion(mapStart, phys.Data)
	obj.Mem.AddRegion(region)

	src, err := file.SegmentBytes(phdr)
	if err != nil {
		return err
	}
	if err := region.WriteAt(vaddr, src); err != nil {
		return err
	}
	// the zero fill is the only mechanism realizing uninitialized-data
	// regions; it must never expose prior memory contents
	return region.Zero(vaddr+phdr.Pfilesz, phdr.Pmemsz-phdr.Pfilesz)
}

func (l *Loader) readInterpPath(obj *LoadedObject, file *elf.File, phdr *elf.ProgramHeader) error {
	raw, err := file.SegmentBytes(phdr)
	if err != nil {
		return err
	}
	path := raw
	for i, b := range raw {
		if b == 0 {
			path = raw[:i]
			break
		}
	}
	obj.InterpPath = string(path)
	return nil
}

// setupStack maps the initial stack below the user-space ceiling and returns
// the 16-byte aligned initial stack pointer.
func (l *Loader) setupStack(s *session) (uint64, error) {
	phys, err := l.allocator.AllocatePages(STACK_PAGES)
	if err != nil {
		return 0, errors.Wrapf(ErrAllocationFailed, "%d stack pages: %v", STACK_PAGES, err)
	}
	stackBase := uint64(STACK_TOP) - STACK_PAGES*memory.PAGE_SIZE
	perms := memory.PermsForSegment(true, true, false)
	if err := l.mapper.MapPages(stackBase, phys, perms); err != nil {
		return 0, errors.Wrapf(ErrMappingFailed, "Stack at 0x%x: %v", stackBase, err)
	}
	s.stack = memory.NewRegion(stackBase, phys.Data)
	return uint64(STACK_TOP) &^ 0xF, nil
}
