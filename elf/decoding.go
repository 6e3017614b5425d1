package elf

import (
	"github.com/Fl0k3n/kload/utils"
)

func HeaderFromBytes(buff []byte, offset int) *Header {
	hdr := &Header{}
	copy(hdr.Eident[:], buff[offset:offset+16])
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset+16,
		&hdr.Etype, &hdr.Emachine, &hdr.Eversion, &hdr.Eentry, &hdr.Ephoff, &hdr.Eshoff,
		&hdr.Eflags, &hdr.Eehsize, &hdr.Ephentsize, &hdr.Ephnum, &hdr.Eshentsize,
		&hdr.Eshnum, &hdr.Eshstrndx)
	return hdr
}

func (h *Header) ToBytes() []byte {
	res := make([]byte, ELF_HEADER_SIZE)
	copy(res, h.Eident[:])
	utils.EncodeUnsignedIntsToLittleEndianU2(res, 16,
		h.Etype, h.Emachine, h.Eversion, h.Eentry, h.Ephoff, h.Eshoff,
		h.Eflags, h.Eehsize, h.Ephentsize, h.Ephnum, h.Eshentsize, h.Eshnum, h.Eshstrndx)
	return res
}

func ProgramHeaderFromBytes(buff []byte, offset int) *ProgramHeader {
	hdr := &ProgramHeader{}
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset,
		&hdr.Ptype, &hdr.Pflags, &hdr.Poffset, &hdr.Pvaddr, &hdr.Ppaddr,
		&hdr.Pfilesz, &hdr.Pmemsz, &hdr.Palign)
	return hdr
}

func (p *ProgramHeader) ToBytes() []byte {
	res := make([]byte, PROGRAM_HEADER_SIZE)
	utils.EncodeUnsignedIntsToLittleEndianU2(res, 0,
		p.Ptype, p.Pflags, p.Poffset, p.Pvaddr, p.Ppaddr, p.Pfilesz, p.Pmemsz, p.Palign)
	return res
}

func SectionHeaderFromBytes(buff []byte, offset int) *SectionHeader {
	hdr := &SectionHeader{}
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset,
		&hdr.Sname, &hdr.Stype, &hdr.Sflags, &hdr.Saddr, &hdr.Soffset,
		&hdr.Ssize, &hdr.Slink, &hdr.Sinfo, &hdr.Saddralign, &hdr.Sentsize)
	return hdr
}

func SymbolFromBytes(buff []byte, offset int) *Symbol {
	sym := &Symbol{}
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset,
		&sym.Sname, &sym.Sinfo, &sym.Sother, &sym.Sshndx, &sym.Svalue, &sym.Ssize)
	return sym
}

func (s *Symbol) ToBytes() []byte {
	res := make([]byte, SYMBOL_SIZE)
	utils.EncodeUnsignedIntsToLittleEndianU2(res, 0,
		s.Sname, s.Sinfo, s.Sother, s.Sshndx, s.Svalue, s.Ssize)
	return res
}

func RelaEntryFromBytes(buff []byte, offset int) *RelaEntry {
	entry := &RelaEntry{}
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset, &entry.Roffset, &entry.Rinfo)
	utils.DecodeIntFromLittleEndianU2(buff, offset+16, &entry.Raddend)
	return entry
}

func (r *RelaEntry) ToBytes() []byte {
	res := make([]byte, RELA_ENTRY_SIZE)
	utils.EncodeUnsignedIntsToLittleEndianU2(res, 0, r.Roffset, r.Rinfo, uint64(r.Raddend))
	return res
}

func DynamicEntryFromBytes(buff []byte, offset int) *DynamicEntry {
	entry := &DynamicEntry{}
	utils.DecodeUnsignedIntsFromLittleEndianU2(buff, offset, &entry.Dtag, &entry.DvalOrPtr)
	return entry
}

func (d *DynamicEntry) ToBytes() []byte {
	res := make([]byte, DYNAMIC_ENTRY_SIZE)
	utils.EncodeUnsignedIntsToLittleEndianU2(res, 0, d.Dtag, d.DvalOrPtr)
	return res
}
