package elf

import "github.com/pkg/errors"

// Format errors: the image is not something this kernel can load. Each
// validation step fails with its own kind so callers can tell "not an ELF"
// from "an ELF we don't support" from "corrupt".
var (
	ErrBadMagic              = errors.New("Bad ELF magic")
	ErrUnsupportedClass      = errors.New("Unsupported ELF class, only 64-bit objects can be loaded")
	ErrUnsupportedEndianness = errors.New("Unsupported ELF data encoding, only little-endian objects can be loaded")
	ErrUnsupportedVersion    = errors.New("Unsupported ELF version")
	ErrUnsupportedMachine    = errors.New("Unsupported machine type, only x86-64 objects can be loaded")
	ErrUnsupportedType       = errors.New("Unsupported object type, only executables and shared objects can be loaded")
	ErrInvalidEntrypoint     = errors.New("Executable has no entrypoint")
	ErrMalformedImage        = errors.New("Malformed ELF image")
)
