package memory

const PAGE_SIZE = 4096

type Perms uint8

const (
	PERM_PRESENT    Perms = 0x1
	PERM_WRITABLE   Perms = 0x2
	PERM_NO_EXECUTE Perms = 0x4
)

// PermsForSegment derives mapping permissions mechanically from segment
// access flags: readable implies present, writable adds the write bit and
// anything not executable is mapped no-execute.
func PermsForSegment(readable bool, writable bool, executable bool) Perms {
	var p Perms
	if readable {
		p |= PERM_PRESENT
	}
	if writable {
		p |= PERM_WRITABLE
	}
	if !executable {
		p |= PERM_NO_EXECUTE
	}
	return p
}

func (p Perms) IsPresent() bool {
	return p&PERM_PRESENT != 0
}

func (p Perms) IsWritable() bool {
	return p&PERM_WRITABLE != 0
}

func (p Perms) IsNoExecute() bool {
	return p&PERM_NO_EXECUTE != 0
}

func PageAlignDown(addr uint64) uint64 {
	return addr &^ uint64(PAGE_SIZE-1)
}

func PageAlignUp(addr uint64) uint64 {
	return (addr + PAGE_SIZE - 1) &^ uint64(PAGE_SIZE-1)
}

// PagesSpanned counts the pages covering [addr, addr+size).
func PagesSpanned(addr uint64, size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (PageAlignUp(addr+size) - PageAlignDown(addr)) / PAGE_SIZE
}

// PhysRange is a run of freshly allocated physical pages. Data is the
// loader-visible window into them; the allocator guarantees it is zeroed.
type PhysRange struct {
	Base      uint64
	PageCount uint64
	Data      []byte
}

func (p *PhysRange) Size() uint64 {
	return p.PageCount * PAGE_SIZE
}

// PageAllocator is the external physical page allocator collaborator.
type PageAllocator interface {
	AllocatePages(count uint64) (*PhysRange, error)
}

// Mapper is the external address-space mapper collaborator. vaddr must be
// page aligned; the whole range is mapped with a single set of permissions.
type Mapper interface {
	MapPages(vaddr uint64, phys *PhysRange, perms Perms) error
}
