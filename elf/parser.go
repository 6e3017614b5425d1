package elf

import (
	"github.com/Fl0k3n/kload/utils"
	"github.com/pkg/errors"
)

// File is the validated, decoded view of a raw image. Data aliases the input
// buffer; program and section headers are decoded copies, safe to index.
type File struct {
	Header         *Header
	ProgramHeaders []ProgramHeader
	SectionHeaders []SectionHeader
	Data           []byte
}

type Parser struct {
	data []byte
	file *File
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse validates the image in a fixed order (magic, class, endianness,
// version, machine, type, entrypoint, header table bounds) and only then
// builds typed views over the header tables. The bounds checks are the sole
// barrier against out-of-bounds reads from attacker-controlled images.
func (p *Parser) Parse(data []byte) (*File, error) {
	p.data = data
	p.file = &File{Data: data}
	err := utils.Pipeline().
		Then(p.parseHeader).
		Then(p.checkClass).
		Then(p.checkEndianness).
		Then(p.checkVersion).
		Then(p.checkMachine).
		Then(p.checkType).
		Then(p.checkEntrypoint).
		Then(p.parseProgramHeaderTable).
		Then(p.parseSectionHeaderTable).
		Error()
	if err != nil {
		return nil, err
	}
	return p.file, nil
}

func (p *Parser) parseHeader() error {
	if len(p.data) < ELF_HEADER_SIZE {
		return errors.Wrapf(ErrBadMagic, "Image has %d bytes, ELF header needs %d", len(p.data), ELF_HEADER_SIZE)
	}
	hdr := HeaderFromBytes(p.data, 0)
	if hdr.Eident[EI_MAG0] != 0x7F || hdr.Eident[EI_MAG1] != 'E' ||
		hdr.Eident[EI_MAG2] != 'L' || hdr.Eident[EI_MAG3] != 'F' {
		return ErrBadMagic
	}
	p.file.Header = hdr
	return nil
}

func (p *Parser) checkClass() error {
	if p.file.Header.Eident[EI_CLASS] != ELF_CLASS_64 {
		return errors.Wrapf(ErrUnsupportedClass, "Class %d", p.file.Header.Eident[EI_CLASS])
	}
	return nil
}

func (p *Parser) checkEndianness() error {
	if p.file.Header.Eident[EI_DATA] != ELF_DATA_LSB {
		return errors.Wrapf(ErrUnsupportedEndianness, "Data encoding %d", p.file.Header.Eident[EI_DATA])
	}
	return nil
}

func (p *Parser) checkVersion() error {
	if p.file.Header.Eident[EI_VERSION] != ELF_VERSION_CURRENT {
		return errors.Wrapf(ErrUnsupportedVersion, "Version %d", p.file.Header.Eident[EI_VERSION])
	}
	return nil
}

func (p *Parser) checkMachine() error {
	if p.file.Header.Emachine != ELF_MACHINE_X86_64 {
		return errors.Wrapf(ErrUnsupportedMachine, "Machine %d", p.file.Header.Emachine)
	}
	return nil
}

func (p *Parser) checkType() error {
	if t := p.file.Header.Etype; t != EXECUTABLE_FILE && t != SHARED_OBJECT_FILE {
		return errors.Wrapf(ErrUnsupportedType, "Object type %d", p.file.Header.Etype)
	}
	return nil
}

// shared objects are legitimately entered only through their exported symbols,
// so a zero entrypoint is rejected for executables only
func (p *Parser) checkEntrypoint() error {
	if p.file.Header.Etype == EXECUTABLE_FILE && p.file.Header.Eentry == 0 {
		return ErrInvalidEntrypoint
	}
	return nil
}

func (p *Parser) checkTableBounds(tableName string, offset uint64, entrySize uint16, entryCount uint16) error {
	tableSize := uint64(entrySize) * uint64(entryCount)
	if offset > uint64(len(p.data)) || tableSize > uint64(len(p.data))-offset {
		return errors.Wrapf(ErrMalformedImage,
			"%s table at offset %d with %d entries of %d bytes exceeds image size %d",
			tableName, offset, entryCount, entrySize, len(p.data))
	}
	return nil
}

func (p *Parser) parseProgramHeaderTable() error {
	hdr := p.file.Header
	if hdr.Ephnum == 0 {
		return nil
	}
	if hdr.Ephentsize != PROGRAM_HEADER_SIZE {
		return errors.Wrapf(ErrMalformedImage, "Program header entry size %d, expected %d", hdr.Ephentsize, PROGRAM_HEADER_SIZE)
	}
	if err := p.checkTableBounds("Program header", hdr.Ephoff, hdr.Ephentsize, hdr.Ephnum); err != nil {
		return err
	}
	programHeaders := make([]ProgramHeader, hdr.Ephnum)
	for i := 0; i < int(hdr.Ephnum); i++ {
		programHeaders[i] = *ProgramHeaderFromBytes(p.data, int(hdr.Ephoff)+i*int(hdr.Ephentsize))
		if programHeaders[i].Pmemsz < programHeaders[i].Pfilesz {
			return errors.Wrapf(ErrMalformedImage,
				"Segment %d has memory size %d smaller than file size %d",
				i, programHeaders[i].Pmemsz, programHeaders[i].Pfilesz)
		}
	}
	p.file.ProgramHeaders = programHeaders
	return nil
}

func (p *Parser) parseSectionHeaderTable() error {
	hdr := p.file.Header
	if hdr.Eshnum == 0 {
		return nil
	}
	if hdr.Eshentsize != SECTION_HEADER_SIZE {
		return errors.Wrapf(ErrMalformedImage, "Section header entry size %d, expected %d", hdr.Eshentsize, SECTION_HEADER_SIZE)
	}
	if err := p.checkTableBounds("Section header", hdr.Eshoff, hdr.Eshentsize, hdr.Eshnum); err != nil {
		return err
	}
	sectionHeaders := make([]SectionHeader, hdr.Eshnum)
	for i := 0; i < int(hdr.Eshnum); i++ {
		sectionHeaders[i] = *SectionHeaderFromBytes(p.data, int(hdr.Eshoff)+i*int(hdr.Eshentsize))
	}
	p.file.SectionHeaders = sectionHeaders
	return nil
}

// LoadSegments returns the PT_LOAD headers in file order.
func (f *File) LoadSegments() []ProgramHeader {
	res := []ProgramHeader{}
	for _, phdr := range f.ProgramHeaders {
		if SegmentType(phdr.Ptype) == PT_LOAD {
			res = append(res, phdr)
		}
	}
	return res
}

func (f *File) SegmentOfType(segmentType SegmentType) (hdr *ProgramHeader, ok bool) {
	for i := range f.ProgramHeaders {
		if SegmentType(f.ProgramHeaders[i].Ptype) == segmentType {
			return &f.ProgramHeaders[i], true
		}
	}
	return nil, false
}

// SegmentBytes bounds-checks and returns the file-backed bytes of a segment.
func (f *File) SegmentBytes(hdr *ProgramHeader) ([]byte, error) {
	if hdr.Poffset > uint64(len(f.Data)) || hdr.Pfilesz > uint64(len(f.Data))-hdr.Poffset {
		return nil, errors.Wrapf(ErrMalformedImage,
			"Segment file range [%d, %d) exceeds image size %d", hdr.Poffset, hdr.Poffset+hdr.Pfilesz, len(f.Data))
	}
	return f.Data[hdr.Poffset : hdr.Poffset+hdr.Pfilesz], nil
}
