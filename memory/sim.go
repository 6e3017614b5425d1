package memory

import "github.com/pkg/errors"

var ErrOutOfPhysicalMemory = errors.New("Out of physical pages")

const SIM_PHYS_BASE = 0x100000

// SimAllocator is a bump allocator over simulated physical memory, used by
// tests and the inspector CLI in place of the kernel frame allocator. Pages
// are handed out zeroed. A non-zero page budget makes allocation fail once
// exhausted, which drives the loader's resource-error paths.
type SimAllocator struct {
	nextBase   uint64
	pageBudget uint64
	allocated  uint64
}

func NewSimAllocator(pageBudget uint64) *SimAllocator {
	return &SimAllocator{
		nextBase:   SIM_PHYS_BASE,
		pageBudget: pageBudget,
	}
}

func (a *SimAllocator) AllocatePages(count uint64) (*PhysRange, error) {
	if a.pageBudget != 0 && a.allocated+count > a.pageBudget {
		return nil, errors.Wrapf(ErrOutOfPhysicalMemory,
			"Requested %d pages with %d of %d already allocated", count, a.allocated, a.pageBudget)
	}
	res := &PhysRange{
		Base:      a.nextBase,
		PageCount: count,
		Data:      make([]byte, count*PAGE_SIZE),
	}
	a.nextBase += count * PAGE_SIZE
	a.allocated += count
	return res, nil
}

func (a *SimAllocator) AllocatedPages() uint64 {
	return a.allocated
}

type Mapping struct {
	Vaddr uint64
	Phys  *PhysRange
	Perms Perms
}

// SimMapper records mappings like the kernel page-table mapper would install
// them, rejecting unaligned and overlapping requests.
type SimMapper struct {
	mappings []Mapping
}

func NewSimMapper() *SimMapper {
	return &SimMapper{mappings: []Mapping{}}
}

func (m *SimMapper) MapPages(vaddr uint64, phys *PhysRange, perms Perms) error {
	if vaddr%PAGE_SIZE != 0 {
		return errors.Errorf("Mapping target 0x%x is not page aligned", vaddr)
	}
	end := vaddr + phys.Size()
	for _, mapping := range m.mappings {
		mappingEnd := mapping.Vaddr + mapping.Phys.Size()
		if vaddr < mappingEnd && mapping.Vaddr < end {
			return errors.Errorf("Mapping [0x%x, 0x%x) overlaps existing mapping [0x%x, 0x%x)",
				vaddr, end, mapping.Vaddr, mappingEnd)
		}
	}
	m.mappings = append(m.mappings, Mapping{Vaddr: vaddr, Phys: phys, Perms: perms})
	return nil
}

func (m *SimMapper) Mappings() []Mapping {
	return m.mappings
}

func (m *SimMapper) MappingAt(vaddr uint64) (*Mapping, bool) {
	for i := range m.mappings {
		mapping := &m.mappings[i]
		if vaddr >= mapping.Vaddr && vaddr < mapping.Vaddr+mapping.Phys.Size() {
			return mapping, true
		}
	}
	return nil, false
}
