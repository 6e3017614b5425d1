package memory

import "github.com/pkg/errors"

// Space is the set of regions mapped for one loaded object. Accesses resolve
// to the single region containing the requested range; ranges never span
// regions because segments are mapped page-disjoint.
type Space struct {
	regions []*Region
}

func NewSpace() *Space {
	return &Space{regions: []*Region{}}
}

func (s *Space) AddRegion(region *Region) {
	s.regions = append(s.regions, region)
}

func (s *Space) Regions() []*Region {
	return s.regions
}

func (s *Space) RegionContaining(vaddr uint64, size uint64) (*Region, error) {
	for _, region := range s.regions {
		if region.Contains(vaddr, size) {
			return region, nil
		}
	}
	return nil, errors.Wrapf(ErrOutOfBounds, "Range [0x%x, 0x%x) is not mapped", vaddr, vaddr+size)
}

func (s *Space) BytesAt(vaddr uint64, size uint64) ([]byte, error) {
	region, err := s.RegionContaining(vaddr, size)
	if err != nil {
		return nil, err
	}
	return region.Bytes(vaddr, size)
}

func (s *Space) WriteAt(vaddr uint64, src []byte) error {
	region, err := s.RegionContaining(vaddr, uint64(len(src)))
	if err != nil {
		return err
	}
	return region.WriteAt(vaddr, src)
}

func (s *Space) Uint32At(vaddr uint64) (uint32, error) {
	region, err := s.RegionContaining(vaddr, 4)
	if err != nil {
		return 0, err
	}
	return region.Uint32(vaddr)
}

func (s *Space) Uint64At(vaddr uint64) (uint64, error) {
	region, err := s.RegionContaining(vaddr, 8)
	if err != nil {
		return 0, err
	}
	return region.Uint64(vaddr)
}

func (s *Space) PutUint32At(vaddr uint64, val uint32) error {
	region, err := s.RegionContaining(vaddr, 4)
	if err != nil {
		return err
	}
	return region.PutUint32(vaddr, val)
}

func (s *Space) PutUint64At(vaddr uint64, val uint64) error {
	region, err := s.RegionContaining(vaddr, 8)
	if err != nil {
		return err
	}
	return region.PutUint64(vaddr, val)
}

func (s *Space) CStringAt(vaddr uint64) (string, error) {
	region, err := s.RegionContaining(vaddr, 0)
	if err != nil {
		return "", err
	}
	return region.CString(vaddr)
}

// MaxMappedAddr returns the highest mapped address plus one, 0 if nothing is
// mapped. Used by the base-address bump allocator.
func (s *Space) MaxMappedAddr() uint64 {
	var max uint64 = 0
	for _, region := range s.regions {
		if region.End() > max {
			max = region.End()
		}
	}
	return max
}
