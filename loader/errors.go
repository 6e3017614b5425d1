package loader

import (
	"github.com/Fl0k3n/kload/elf"
	"github.com/Fl0k3n/kload/memory"
	"github.com/pkg/errors"
)

// Resource errors: fatal to this load attempt, the kernel itself is fine.
var (
	ErrAllocationFailed = errors.New("Physical page allocation failed")
	ErrMappingFailed    = errors.New("Address space mapping failed")
)

// Resolution errors: the image set is incompatible or corrupt; a half-linked
// process must never be scheduled, so these are never retried.
var (
	ErrLibraryNotFound       = errors.New("Required library not found")
	ErrUnresolvedSymbol      = errors.New("Unresolved symbol")
	ErrUnsupportedRelocation = errors.New("Unsupported relocation type")
)

type ErrorKind string

const (
	FORMAT_ERROR     ErrorKind = "format"
	RESOURCE_ERROR   ErrorKind = "resource"
	RESOLUTION_ERROR ErrorKind = "resolution"
	UNKNOWN_ERROR    ErrorKind = "unknown"
)

var formatErrors = []error{
	elf.ErrBadMagic, elf.ErrUnsupportedClass, elf.ErrUnsupportedEndianness,
	elf.ErrUnsupportedVersion, elf.ErrUnsupportedMachine, elf.ErrUnsupportedType,
	elf.ErrInvalidEntrypoint, elf.ErrMalformedImage, memory.ErrOutOfBounds,
}

var resourceErrors = []error{ErrAllocationFailed, ErrMappingFailed}

var resolutionErrors = []error{ErrLibraryNotFound, ErrUnresolvedSymbol, ErrUnsupportedRelocation}

func KindOf(err error) ErrorKind {
	for _, sentinel := range formatErrors {
		if errors.Is(err, sentinel) {
			return FORMAT_ERROR
		}
	}
	for _, sentinel := range resourceErrors {
		if errors.Is(err, sentinel) {
			return RESOURCE_ERROR
		}
	}
	for _, sentinel := range resolutionErrors {
		if errors.Is(err, sentinel) {
			return RESOLUTION_ERROR
		}
	}
	return UNKNOWN_ERROR
}
