package arwriter

import "errors"

// GetSymbolsFunc iterates over the archive-visible symbol names in an
// object file buffer, calling emit once per name in object order. It
// returns whether the archive should carry a symbol-table entry for
// this member at all (false for object kinds the reader doesn't
// recognize), plus any error from parsing the buffer or from emit.
type GetSymbolsFunc func(buf []byte, emit func(name []byte) error) (bool, error)

// Is64BitObjectFileFunc reports whether buf is a 64-bit object file.
// Note: to match the reference archiver this must treat *all* COFF
// object files as 32-bit, regardless of machine word size.
type Is64BitObjectFileFunc func(buf []byte) bool

// IsECObjectFileFunc reports whether buf is an "EC" (ARM64EC or x64)
// object file as opposed to classic ARM64.
type IsECObjectFileFunc func(buf []byte) bool

// GetXCOFFMemberAlignmentFunc returns the alignment (a power of two, at
// least 2) an XCOFF big-archive member needs for its data to start on,
// derived from the object's auxiliary header.
type GetXCOFFMemberAlignmentFunc func(buf []byte) uint32

// ObjectReader is the capability the core delegates all object-file
// introspection to. It is a plain record of four pure functions, not an
// interface with method dispatch, so that callers can substitute a
// trivial or mocked reader (e.g. in tests) without implementing a full
// parser.
type ObjectReader struct {
	GetSymbols              GetSymbolsFunc
	Is64BitObjectFile       Is64BitObjectFileFunc
	IsECObjectFile          IsECObjectFileFunc
	GetXCOFFMemberAlignment GetXCOFFMemberAlignmentFunc
}

// NewArchiveMember describes one member to be written into an archive.
// Buf is borrowed: the core never copies it and must not be mutated or
// freed by the caller until WriteArchive returns.
type NewArchiveMember struct {
	Buf          []byte
	ObjectReader *ObjectReader
	MemberName   string
	MTime        uint64
	UID          uint32
	GID          uint32
	Perms        uint32
}

// ErrMemberTooLarge is returned when a member's on-disk size (payload
// plus any Darwin alignment padding) exceeds the ten-decimal-digit size
// field's capacity.
var ErrMemberTooLarge = errors.New("arwriter: archive member is too big")

// memberData is the fully precomputed, ready-to-stream representation
// of one archive member: its rendered header, its (possibly padded)
// payload, and the offsets of its symbols within the shared symbol-name
// string table. Everything here is emitted verbatim during the final
// write pass; no further layout decisions are made at write time.
type memberData struct {
	name           string
	symbols        []uint64
	header         []byte
	data           []byte
	padding        []byte
	preHeadPadSize uint64
	is64Bit        bool
	isEC           bool
}

func (m *memberData) totalLen() uint64 {
	return m.preHeadPadSize + uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
}
