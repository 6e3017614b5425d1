package memory

import "github.com/pkg/errors"

var ErrOutOfBounds = errors.New("Access outside of mapped region")

// Region is a bounds-checked view of one mapped virtual range
// [base, base+len(data)). Every access takes absolute virtual addresses and
// fails instead of touching memory outside the range; loaded images are
// adversarial, so no raw pointer arithmetic happens anywhere above this type.
type Region struct {
	base uint64
	data []byte
}

func NewRegion(base uint64, data []byte) *Region {
	return &Region{base: base, data: data}
}

func (r *Region) Base() uint64 {
	return r.base
}

func (r *Region) Size() uint64 {
	return uint64(len(r.data))
}

func (r *Region) End() uint64 {
	return r.base + uint64(len(r.data))
}

func (r *Region) Contains(vaddr uint64, size uint64) bool {
	return vaddr >= r.base && vaddr-r.base <= r.Size() && size <= r.Size()-(vaddr-r.base)
}

func (r *Region) checkRange(vaddr uint64, size uint64) error {
	if !r.Contains(vaddr, size) {
		return errors.Wrapf(ErrOutOfBounds,
			"Range [0x%x, 0x%x) not contained in region [0x%x, 0x%x)", vaddr, vaddr+size, r.base, r.End())
	}
	return nil
}

// Bytes returns a mutable window into the region, bounds-checked.
func (r *Region) Bytes(vaddr uint64, size uint64) ([]byte, error) {
	if err := r.checkRange(vaddr, size); err != nil {
		return nil, err
	}
	off := vaddr - r.base
	return r.data[off : off+size], nil
}

func (r *Region) WriteAt(vaddr uint64, src []byte) error {
	dst, err := r.Bytes(vaddr, uint64(len(src)))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (r *Region) Zero(vaddr uint64, size uint64) error {
	dst, err := r.Bytes(vaddr, size)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func (r *Region) Uint32(vaddr uint64) (uint32, error) {
	buff, err := r.Bytes(vaddr, 4)
	if err != nil {
		return 0, err
	}
	return uint32(buff[0]) | uint32(buff[1])<<8 | uint32(buff[2])<<16 | uint32(buff[3])<<24, nil
}

func (r *Region) Uint64(vaddr uint64) (uint64, error) {
	buff, err := r.Bytes(vaddr, 8)
	if err != nil {
		return 0, err
	}
	var res uint64
	for i := 7; i >= 0; i-- {
		res = res<<8 | uint64(buff[i])
	}
	return res, nil
}

func (r *Region) PutUint32(vaddr uint64, val uint32) error {
	buff, err := r.Bytes(vaddr, 4)
	if err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		buff[i] = uint8(val >> (8 * i))
	}
	return nil
}

func (r *Region) PutUint64(vaddr uint64, val uint64) error {
	buff, err := r.Bytes(vaddr, 8)
	if err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		buff[i] = uint8(val >> (8 * i))
	}
	return nil
}

// CString reads a NUL-terminated string starting at vaddr; the terminator
// must lie within the region.
func (r *Region) CString(vaddr uint64) (string, error) {
	if err := r.checkRange(vaddr, 0); err != nil {
		return "", err
	}
	off := vaddr - r.base
	for end := off; end < r.Size(); end++ {
		if r.data[end] == 0 {
			return string(r.data[off:end]), nil
		}
	}
	return "", errors.Wrapf(ErrOutOfBounds, "Unterminated string at 0x%x", vaddr)
}
