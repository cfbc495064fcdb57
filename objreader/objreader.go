// Package objreader implements the default ObjectReader capability: a
// thin wrapper over the standard library's ELF, Mach-O and PE parsers
// (and a small hand-rolled XCOFF reader, since the standard library has
// no support for it) that the core archive writer never has to import
// directly. Callers who need a different object format, or who want to
// substitute a stub for testing, build their own arwriter.ObjectReader
// instead of using this package.
package objreader

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"

	arwriter "github.com/appsworld/ar-archive-writer"
	"github.com/appsworld/ar-archive-writer/types"
)

// Default is the object reader used whenever a caller doesn't supply
// its own: it recognizes ELF, Mach-O, PE/COFF and the PE/COFF
// short-import member format, and falls back to XCOFF's fixed-width
// auxiliary header for big-archive alignment queries.
var Default = &arwriter.ObjectReader{
	GetSymbols:              GetSymbols,
	Is64BitObjectFile:       Is64BitObjectFile,
	IsECObjectFile:          IsECObjectFile,
	GetXCOFFMemberAlignment: GetXCOFFMemberAlignment,
}

// GetSymbols extracts the archive-visible (global, defined) symbol
// names from buf, trying each supported object format in turn before
// falling back to the short-import member layout.
func GetSymbols(buf []byte, emit func(name []byte) error) (bool, error) {
	if f, err := elf.NewFile(bytes.NewReader(buf)); err == nil {
		syms, err := f.Symbols()
		if err != nil {
			syms = nil
		}
		for _, s := range syms {
			if !isArchiveVisibleELF(s) {
				continue
			}
			if err := emit([]byte(s.Name)); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	if f, err := macho.NewFile(bytes.NewReader(buf)); err == nil {
		if f.Symtab != nil {
			for _, s := range f.Symtab.Syms {
				if !isArchiveVisibleMachO(s) {
					continue
				}
				if err := emit([]byte(s.Name)); err != nil {
					return true, err
				}
			}
		}
		return true, nil
	}
	if f, err := pe.NewFile(bytes.NewReader(buf)); err == nil {
		for _, s := range f.Symbols {
			if !isArchiveVisiblePE(s) {
				continue
			}
			if err := emit([]byte(s.Name)); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return ParseShortImportSymbols(buf, emit)
}

func isArchiveVisibleELF(s elf.Symbol) bool {
	if elf.ST_TYPE(s.Info) == elf.STT_FILE || elf.ST_TYPE(s.Info) == elf.STT_SECTION {
		return false
	}
	if elf.ST_BIND(s.Info) == elf.STB_LOCAL {
		return false
	}
	if s.Section == elf.SHN_UNDEF {
		return false
	}
	return s.Name != ""
}

func isArchiveVisibleMachO(s macho.Symbol) bool {
	if s.Type&0x01 == 0 { // not N_EXT
		return false
	}
	if s.Type&0x0e == 0 { // N_UNDF
		return false
	}
	if s.Name == "" {
		return false
	}
	return s.Sect != 0 || s.Type&0x0e == 0x02 // N_SECT or N_ABS
}

func isArchiveVisiblePE(s *pe.Symbol) bool {
	if s.SectionNumber <= 0 {
		return false
	}
	const imageSymClassExternal = 2
	if s.StorageClass != imageSymClassExternal {
		return false
	}
	return s.Name != ""
}

// ParseShortImportSymbols decodes buf as a short-import member (the
// format emitted for each export by the import-library synthesizer)
// and emits the symbol names a linker would see: "__imp_<name>" always,
// plus the bare name unless the import is data-only, plus, for
// ARM64EC, the auxiliary "__imp_aux_<name>" view and the raw mangled
// name.
func ParseShortImportSymbols(buf []byte, emit func(name []byte) error) (bool, error) {
	hdr, ok := types.ParseImportObjectHeader(buf)
	if !ok {
		return false, nil
	}
	rest := buf[types.ImportObjectHeaderSize:]
	parts := bytes.SplitN(rest, []byte{0}, 3)
	if len(parts) < 2 {
		return true, nil
	}
	symbol := parts[0]

	isEC := hdr.Machine == types.MachineARM64EC
	name := symbol
	if isEC {
		if demangled, ok := ecDemangle(string(symbol)); ok {
			name = []byte(demangled)
		}
	}

	if err := emit(append([]byte("__imp_"), name...)); err != nil {
		return true, err
	}
	if hdr.ImportTypeField() == types.ImportData {
		return true, nil
	}
	if err := emit(name); err != nil {
		return true, err
	}
	if isEC {
		if err := emit(append([]byte("__imp_aux_"), name...)); err != nil {
			return true, err
		}
		if err := emit(symbol); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ecDemangle is a local mirror of mangler.Demangle kept dependency-free
// of the mangler package, since the short-import fallback only needs
// the plain "#"-prefix and "$$h"-infix stripping rules, not the full
// encode/decode surface.
func ecDemangle(name string) (string, bool) {
	if len(name) > 0 && name[0] == '#' {
		return name[1:], true
	}
	if len(name) > 0 && name[0] == '?' {
		if idx := bytes.Index([]byte(name), []byte("$$h")); idx >= 0 && idx+3 < len(name) {
			return name[:idx] + name[idx+3:], true
		}
	}
	return "", false
}

// Is64BitObjectFile reports whether buf is a 64-bit ELF, Mach-O, or
// XCOFF object. PE/COFF objects and import members always report
// false here, matching the reference archiver's treatment of every
// COFF symbol as living in a 32-bit symbolic file regardless of the
// target machine's actual word size.
func Is64BitObjectFile(buf []byte) bool {
	if f, err := elf.NewFile(bytes.NewReader(buf)); err == nil {
		return f.Class == elf.ELFCLASS64
	}
	if f, err := macho.NewFile(bytes.NewReader(buf)); err == nil {
		return f.Magic == macho.Magic64
	}
	if isXCOFF(buf) {
		return binary.BigEndian.Uint16(buf[0:2]) == xcoffMagic64
	}
	return false
}

// IsECObjectFile reports whether buf should be routed through the
// ARM64EC second-chance symbol view: any COFF object or short-import
// member whose machine isn't plain ARM64.
func IsECObjectFile(buf []byte) bool {
	if f, err := pe.NewFile(bytes.NewReader(buf)); err == nil {
		return types.MachineType(f.Machine) != types.MachineARM64
	}
	if hdr, ok := types.ParseImportObjectHeader(buf); ok {
		return hdr.Machine != types.MachineARM64
	}
	return false
}

const (
	xcoffMagic32 = 0x01df
	xcoffMagic64 = 0x01f7
	aixPageLog2  = 12
	minMemberAlign = 2
)

func isXCOFF(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	magic := binary.BigEndian.Uint16(buf[0:2])
	return magic == xcoffMagic32 || magic == xcoffMagic64
}

// GetXCOFFMemberAlignment returns the data alignment an AIX big-archive
// member needs, derived from the object's XCOFF auxiliary header
// o_algntext/o_algndata fields when present, defaulting to the AIX page
// size when the object carries no auxiliary header (the archiver must
// still produce a legal, if conservative, layout).
func GetXCOFFMemberAlignment(buf []byte) uint32 {
	align, ok := xcoffAuxAlignment(buf)
	if !ok {
		return 1 << aixPageLog2
	}
	if align < minMemberAlign {
		return minMemberAlign
	}
	return align
}

// xcoffAuxAlignment reads the XCOFF auxiliary header's packed
// o_algntext/o_algndata half-word (each a log2 alignment) and returns
// the larger of the two as an actual byte alignment.
func xcoffAuxAlignment(buf []byte) (uint32, bool) {
	if !isXCOFF(buf) {
		return 0, false
	}
	is64 := binary.BigEndian.Uint16(buf[0:2]) == xcoffMagic64
	fileHdrSize := 20
	if is64 {
		fileHdrSize = 24
	}
	if len(buf) < fileHdrSize+2 {
		return 0, false
	}
	auxHdrSize := int(binary.BigEndian.Uint16(buf[fileHdrSize-2 : fileHdrSize]))
	if auxHdrSize == 0 {
		return 0, false
	}
	auxStart := fileHdrSize
	// o_algntext/o_algndata sit at the same fixed offset in both the
	// 32-bit and 64-bit XCOFF auxiliary header.
	const algnOffset = 46
	if len(buf) < auxStart+algnOffset+2 {
		return 0, false
	}
	packed := binary.BigEndian.Uint16(buf[auxStart+algnOffset : auxStart+algnOffset+2])
	algnText := packed >> 8
	algnData := packed & 0xff
	logAlign := algnText
	if algnData > logAlign {
		logAlign = algnData
	}
	if logAlign == 0 || logAlign > 30 {
		return 0, false
	}
	return 1 << logAlign, true
}
