// Package types holds the COFF and PE on-disk structure layouts shared
// by the archive writer's import-library synthesizer and its default
// object reader. Every struct here corresponds to a fixed-width record
// from the Microsoft PE/COFF specification; fields are encoded and
// decoded by hand rather than through reflection so that padding and
// byte order exactly match what a linker expects.
package types

import "encoding/binary"

// MachineType identifies the target instruction set a COFF object or
// import member was built for.
type MachineType uint16

const (
	MachineUnknown MachineType = 0
	MachineI386    MachineType = 0x14c
	MachineARMNT   MachineType = 0x1c4
	MachineARM64   MachineType = 0xaa64
	MachineARM64EC MachineType = 0xa641
	MachineARM64X  MachineType = 0xa64e
	MachineAMD64   MachineType = 0x8664
)

// IsARM64EC reports whether m is the ARM64EC or ARM64X machine type,
// either of which carries EC-mangled symbol names.
func (m MachineType) IsARM64EC() bool {
	return m == MachineARM64EC || m == MachineARM64X
}

// IsAnyARM64 reports whether m targets any ARM64 variant.
func (m MachineType) IsAnyARM64() bool {
	return m == MachineARM64 || m == MachineARM64EC || m == MachineARM64X
}

// Is64Bit reports whether m is a 64-bit instruction set. COFF archives
// never use this for their own offset-width decision (that's always
// 32-bit, an LLVM-compatible quirk); it is only used for synthesized
// member contents, such as the null-thunk-data section size and the
// 32-bit-machine file-header characteristic.
func (m MachineType) Is64Bit() bool {
	switch m {
	case MachineAMD64, MachineARM64, MachineARM64EC, MachineARM64X:
		return true
	default:
		return false
	}
}

// ImportType classifies what an import points at: executable code, a
// data object, or a compile-time constant.
type ImportType uint16

const (
	ImportCode ImportType = iota
	ImportData
	ImportConst
)

// ImportNameType selects how a short-import member's symbol name is
// transformed by the linker when it's matched against the DLL's export
// table.
type ImportNameType uint16

const (
	ImportNameOrdinal ImportNameType = iota
	ImportNameName
	ImportNameNameNoprefix
	ImportNameNameUndecorate
	ImportNameNameExportas
)

// ImportObjectHeader is the 20-byte fixed header preceding a
// short-import member's variable-length string payload.
type ImportObjectHeader struct {
	Sig1           uint16
	Sig2           uint16
	Version        uint16
	Machine        MachineType
	TimeDateStamp  uint32
	SizeOfData     uint32
	OrdinalOrHint  uint16
	TypeAndName    uint16 // (NameType << 2) | ImportType
}

const ImportObjectHeaderSize = 20

// Put encodes h into buf, which must be at least ImportObjectHeaderSize
// bytes long, and returns the number of bytes written.
func (h ImportObjectHeader) Put(buf []byte) int {
	binary.LittleEndian.PutUint16(buf[0:2], h.Sig1)
	binary.LittleEndian.PutUint16(buf[2:4], h.Sig2)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Machine))
	binary.LittleEndian.PutUint32(buf[8:12], h.TimeDateStamp)
	binary.LittleEndian.PutUint32(buf[12:16], h.SizeOfData)
	binary.LittleEndian.PutUint16(buf[16:18], h.OrdinalOrHint)
	binary.LittleEndian.PutUint16(buf[18:20], h.TypeAndName)
	return ImportObjectHeaderSize
}

// ParseImportObjectHeader decodes a 20-byte short-import header from
// the front of buf.
func ParseImportObjectHeader(buf []byte) (ImportObjectHeader, bool) {
	if len(buf) < ImportObjectHeaderSize {
		return ImportObjectHeader{}, false
	}
	h := ImportObjectHeader{
		Sig1:          binary.LittleEndian.Uint16(buf[0:2]),
		Sig2:          binary.LittleEndian.Uint16(buf[2:4]),
		Version:       binary.LittleEndian.Uint16(buf[4:6]),
		Machine:       MachineType(binary.LittleEndian.Uint16(buf[6:8])),
		TimeDateStamp: binary.LittleEndian.Uint32(buf[8:12]),
		SizeOfData:    binary.LittleEndian.Uint32(buf[12:16]),
		OrdinalOrHint: binary.LittleEndian.Uint16(buf[16:18]),
		TypeAndName:   binary.LittleEndian.Uint16(buf[18:20]),
	}
	if h.Sig1 != 0 || h.Sig2 != 0xffff {
		return ImportObjectHeader{}, false
	}
	return h, true
}

// ImportTypeField extracts the low two bits of TypeAndName.
func (h ImportObjectHeader) ImportTypeField() ImportType {
	return ImportType(h.TypeAndName & 0x3)
}

// NameType extracts the name-type bits of TypeAndName.
func (h ImportObjectHeader) NameType() ImportNameType {
	return ImportNameType((h.TypeAndName >> 2) & 0x7)
}

// MakeTypeAndName packs an import type and name type into the
// TypeAndName bitfield.
func MakeTypeAndName(nt ImportNameType, it ImportType) uint16 {
	return (uint16(nt) << 2) | uint16(it)
}

// FileHeader is the 20-byte COFF object file header.
type FileHeader struct {
	Machine              MachineType
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

const FileHeaderSize = 20

const (
	CharacteristicsRelocsStripped   = 0x0001
	Characteristics32BitMachine     = 0x0100
	CharacteristicsLineNumsStripped = 0x0004
)

func (h FileHeader) Put(buf []byte) int {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Machine))
	binary.LittleEndian.PutUint16(buf[2:4], h.NumberOfSections)
	binary.LittleEndian.PutUint32(buf[4:8], h.TimeDateStamp)
	binary.LittleEndian.PutUint32(buf[8:12], h.PointerToSymbolTable)
	binary.LittleEndian.PutUint32(buf[12:16], h.NumberOfSymbols)
	binary.LittleEndian.PutUint16(buf[16:18], h.SizeOfOptionalHeader)
	binary.LittleEndian.PutUint16(buf[18:20], h.Characteristics)
	return FileHeaderSize
}

// SectionHeader is the 40-byte COFF section header.
type SectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

const SectionHeaderSize = 40

const (
	SectionCntCode             = 0x00000020
	SectionCntInitializedData  = 0x00000040
	SectionLnkInfo             = 0x00000200
	SectionLnkRemove           = 0x00000800
	SectionAlign4Bytes         = 0x00300000
	SectionAlign8Bytes         = 0x00400000
	SectionMemExecute          = 0x20000000
	SectionMemRead             = 0x40000000
	SectionMemWrite            = 0x80000000
)

func SectionName(name string) [8]byte {
	var b [8]byte
	copy(b[:], name)
	return b
}

func (s SectionHeader) Put(buf []byte) int {
	copy(buf[0:8], s.Name[:])
	binary.LittleEndian.PutUint32(buf[8:12], s.VirtualSize)
	binary.LittleEndian.PutUint32(buf[12:16], s.VirtualAddress)
	binary.LittleEndian.PutUint32(buf[16:20], s.SizeOfRawData)
	binary.LittleEndian.PutUint32(buf[20:24], s.PointerToRawData)
	binary.LittleEndian.PutUint32(buf[24:28], s.PointerToRelocations)
	binary.LittleEndian.PutUint32(buf[28:32], s.PointerToLineNumbers)
	binary.LittleEndian.PutUint16(buf[32:34], s.NumberOfRelocations)
	binary.LittleEndian.PutUint16(buf[34:36], s.NumberOfLineNumbers)
	binary.LittleEndian.PutUint32(buf[36:40], s.Characteristics)
	return SectionHeaderSize
}

// Relocation is the 10-byte COFF relocation entry.
type Relocation struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}

const RelocationSize = 10

func (r Relocation) Put(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], r.VirtualAddress)
	binary.LittleEndian.PutUint32(buf[4:8], r.SymbolTableIndex)
	binary.LittleEndian.PutUint16(buf[8:10], r.Type)
	return RelocationSize
}

const (
	RelocAMD64Addr32NB = 0x0003
	RelocARMAddr32NB   = 0x0003
	RelocARM64Addr32NB = 0x0002
	RelocI386Dir32NB   = 0x0007
)

// ImgRelRelocationType returns the image-relative relocation type a
// given machine uses to reference a symbol without a base address.
func ImgRelRelocationType(m MachineType) uint16 {
	switch m {
	case MachineAMD64:
		return RelocAMD64Addr32NB
	case MachineARMNT:
		return RelocARMAddr32NB
	case MachineARM64, MachineARM64EC, MachineARM64X:
		return RelocARM64Addr32NB
	case MachineI386:
		return RelocI386Dir32NB
	default:
		return 0
	}
}

// Symbol is the 18-byte COFF symbol table record. ShortName holds an
// inline name, or a zero prefix followed by a little-endian string
// table offset when the name doesn't fit inline.
type Symbol struct {
	ShortName          [8]byte
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

const SymbolSize = 18

const (
	SymClassExternal      = 2
	SymClassStatic        = 3
	SymClassWeakExternal  = 105
	SectionNumberUndef    = 0
	SectionNumberAbsolute = -1
)

func NameInStringTable(offset uint32) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[4:8], offset)
	return b
}

func (s Symbol) Put(buf []byte) int {
	copy(buf[0:8], s.ShortName[:])
	binary.LittleEndian.PutUint32(buf[8:12], s.Value)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(s.SectionNumber))
	binary.LittleEndian.PutUint16(buf[14:16], s.Type)
	buf[16] = s.StorageClass
	buf[17] = s.NumberOfAuxSymbols
	return SymbolSize
}

// WeakExternalAux is the auxiliary record following a weak-external
// symbol, identifying its default (alias) symbol and search behavior.
type WeakExternalAux struct {
	TagIndex           uint32
	Characteristics    uint32
}

const WeakExternalSearchAlias = 3

func (a WeakExternalAux) Put(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], a.TagIndex)
	binary.LittleEndian.PutUint32(buf[4:8], a.Characteristics)
	for i := 8; i < SymbolSize; i++ {
		buf[i] = 0
	}
	return SymbolSize
}

// ImportDescriptor is the 20-byte IMAGE_IMPORT_DESCRIPTOR record. Every
// field here is filled in at load time by the linker via relocations
// against the object's own symbols, so the synthesized object carries
// it zeroed.
type ImportDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

const ImportDescriptorSize = 20

func (ImportDescriptor) Put(buf []byte) int {
	for i := 0; i < ImportDescriptorSize; i++ {
		buf[i] = 0
	}
	return ImportDescriptorSize
}
