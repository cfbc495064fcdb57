// Package coffimport synthesizes a Windows import library: the small
// set of COFF object members (an import descriptor, a null import
// descriptor, a null thunk, and one short-import member per exported
// symbol) that, assembled into a COFF archive, let a linker resolve
// references to a DLL's exports without the DLL itself being present.
package coffimport

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	arwriter "github.com/appsworld/ar-archive-writer"
	"github.com/appsworld/ar-archive-writer/mangler"
	"github.com/appsworld/ar-archive-writer/objreader"
	"github.com/appsworld/ar-archive-writer/types"
)

const (
	importDescriptorPrefix       = "__IMPORT_DESCRIPTOR_"
	nullImportDescriptorSymbol   = "__NULL_IMPORT_DESCRIPTOR"
	nullThunkDataPrefix          = "\x7f"
	nullThunkDataSuffix          = "_NULL_THUNK_DATA"
)

// ShortExport describes one symbol exported by the DLL being wrapped.
type ShortExport struct {
	Name        string
	ExtName     string
	SymbolName  string
	AliasTarget string
	Ordinal     uint16
	Noname      bool
	Data        bool
	Private     bool
	Constant    bool
}

// readerForShortImport is the object reader used for the short-import
// members this package itself creates: its symbol extraction is the
// hand-written short-import decoder, while the other three
// capabilities are inherited unchanged from the default reader, since
// a short-import member is never 64-bit, is EC exactly when its
// recorded machine isn't ARM64, and is irrelevant to XCOFF alignment.
var readerForShortImport = &arwriter.ObjectReader{
	GetSymbols:              objreader.ParseShortImportSymbols,
	Is64BitObjectFile:       objreader.Default.Is64BitObjectFile,
	IsECObjectFile:          objreader.Default.IsECObjectFile,
	GetXCOFFMemberAlignment: objreader.Default.GetXCOFFMemberAlignment,
}

// nativeObjectReader is used for the synthesized descriptor/thunk
// members, which are ordinary (if synthetic) COFF objects.
var nativeObjectReader = objreader.Default

// objectFactory builds the small set of fixed COFF members every
// import library needs, derived once per DLL from its import name.
type objectFactory struct {
	importDescriptorSymbol string
	nullThunkSymbol        string
	machine                types.MachineType
}

func newObjectFactory(importName string, machine types.MachineType) (*objectFactory, error) {
	stem := strings.TrimSuffix(filepath.Base(importName), filepath.Ext(importName))
	if stem == "" {
		return nil, fmt.Errorf("coffimport: %q has no file stem", importName)
	}
	return &objectFactory{
		importDescriptorSymbol: importDescriptorPrefix + stem,
		nullThunkSymbol:        nullThunkDataPrefix + stem + nullThunkDataSuffix,
		machine:                machine,
	}, nil
}

func is64BitMachine(m types.MachineType) bool {
	return m.Is64Bit()
}

func characteristics32(machine types.MachineType) uint16 {
	if is64BitMachine(machine) {
		return 0
	}
	return types.Characteristics32BitMachine
}

func writeStringTable(names ...string) []byte {
	var body bytes.Buffer
	for _, n := range names {
		body.WriteString(n)
		body.WriteByte(0)
	}
	var out bytes.Buffer
	lenField := make([]byte, 4)
	total := uint32(body.Len() + 4)
	lenField[0] = byte(total)
	lenField[1] = byte(total >> 8)
	lenField[2] = byte(total >> 16)
	lenField[3] = byte(total >> 24)
	out.Write(lenField)
	out.Write(body.Bytes())
	return out.Bytes()
}

// stringTableOffsets returns the byte offset of each name within the
// string table writeStringTable(names...) would produce (offsets are
// relative to the start of the string table, so they already include
// its own 4-byte length prefix).
func stringTableOffsets(names ...string) []uint32 {
	offsets := make([]uint32, len(names))
	pos := uint32(4)
	for i, n := range names {
		offsets[i] = pos
		pos += uint32(len(n)) + 1
	}
	return offsets
}

// createImportDescriptor builds the ".idata$2"/".idata$6" member that
// carries the DLL's IMAGE_IMPORT_DESCRIPTOR record.
func (f *objectFactory) createImportDescriptor(dllName string) arwriter.NewArchiveMember {
	strs := []string{f.importDescriptorSymbol, nullImportDescriptorSymbol, f.nullThunkSymbol}
	offs := stringTableOffsets(strs...)
	strTab := writeStringTable(strs...)

	idata6 := append([]byte(dllName), 0)

	var buf bytes.Buffer
	hdr := types.FileHeader{
		Machine:          f.machine,
		NumberOfSections: 2,
		NumberOfSymbols:  7,
		Characteristics:  characteristics32(f.machine),
	}
	section2 := types.SectionHeader{
		Name:            types.SectionName(".idata$2"),
		SizeOfRawData:   types.ImportDescriptorSize,
		Characteristics: types.SectionCntInitializedData | types.SectionMemRead | types.SectionMemWrite,
	}
	section6 := types.SectionHeader{
		Name:            types.SectionName(".idata$6"),
		SizeOfRawData:   uint32(len(idata6)),
		Characteristics: types.SectionCntInitializedData | types.SectionMemRead | types.SectionMemWrite,
	}

	section2.PointerToRawData = types.FileHeaderSize + 2*types.SectionHeaderSize
	section2.PointerToRelocations = section2.PointerToRawData + types.ImportDescriptorSize
	section2.NumberOfRelocations = 3
	section6.PointerToRawData = section2.PointerToRelocations + 3*types.RelocationSize

	hdr.PointerToSymbolTable = section6.PointerToRawData + section6.SizeOfRawData

	hb := make([]byte, types.FileHeaderSize)
	hdr.Put(hb)
	buf.Write(hb)

	sb := make([]byte, types.SectionHeaderSize)
	section2.Put(sb)
	buf.Write(sb)
	section6.Put(sb)
	buf.Write(sb)

	descBuf := make([]byte, types.ImportDescriptorSize)
	types.ImportDescriptor{}.Put(descBuf)
	buf.Write(descBuf)

	relType := types.ImgRelRelocationType(f.machine)
	relocs := []types.Relocation{
		{VirtualAddress: 12, SymbolTableIndex: 2, Type: relType}, // Name
		{VirtualAddress: 0, SymbolTableIndex: 3, Type: relType},  // OriginalFirstThunk
		{VirtualAddress: 16, SymbolTableIndex: 4, Type: relType}, // FirstThunk
	}
	rb := make([]byte, types.RelocationSize)
	for _, r := range relocs {
		r.Put(rb)
		buf.Write(rb)
	}
	buf.Write(idata6)

	writeSym := func(name [8]byte, value uint32, section int16, class uint8, naux uint8) {
		s := types.Symbol{ShortName: name, Value: value, SectionNumber: section, StorageClass: class, NumberOfAuxSymbols: naux}
		b := make([]byte, types.SymbolSize)
		s.Put(b)
		buf.Write(b)
	}
	writeSym(types.NameInStringTable(offs[0]), 0, 1, types.SymClassExternal, 0)
	writeSym(types.SectionName(".idata$2"), 0, 1, types.SymClassStatic, 0)
	writeSym(types.SectionName(".idata$6"), 0, 2, types.SymClassStatic, 0)
	writeSym(types.SectionName(".idata$4"), 0, 0, types.SymClassStatic, 0)
	writeSym(types.SectionName(".idata$5"), 0, 0, types.SymClassStatic, 0)
	writeSym(types.NameInStringTable(offs[1]), 0, 0, types.SymClassExternal, 0)
	writeSym(types.NameInStringTable(offs[2]), 0, 0, types.SymClassExternal, 0)

	buf.Write(strTab)

	return arwriter.NewArchiveMember{
		Buf:          buf.Bytes(),
		ObjectReader: nativeObjectReader,
		MemberName:   dllName,
	}
}

// createNullImportDescriptor builds the ".idata$3" terminator member
// every import library needs exactly one of.
func (f *objectFactory) createNullImportDescriptor(importName string) arwriter.NewArchiveMember {
	strs := []string{nullImportDescriptorSymbol}
	strTab := writeStringTable(strs...)
	offs := stringTableOffsets(strs...)

	var buf bytes.Buffer
	hdr := types.FileHeader{
		Machine:          f.machine,
		NumberOfSections: 1,
		NumberOfSymbols:  1,
		Characteristics:  characteristics32(f.machine),
	}
	section := types.SectionHeader{
		Name:            types.SectionName(".idata$3"),
		SizeOfRawData:   types.ImportDescriptorSize,
		Characteristics: types.SectionCntInitializedData | types.SectionMemRead | types.SectionMemWrite,
	}
	section.PointerToRawData = types.FileHeaderSize + types.SectionHeaderSize
	hdr.PointerToSymbolTable = section.PointerToRawData + section.SizeOfRawData

	hb := make([]byte, types.FileHeaderSize)
	hdr.Put(hb)
	buf.Write(hb)
	sb := make([]byte, types.SectionHeaderSize)
	section.Put(sb)
	buf.Write(sb)
	descBuf := make([]byte, types.ImportDescriptorSize)
	types.ImportDescriptor{}.Put(descBuf)
	buf.Write(descBuf)

	s := types.Symbol{ShortName: types.NameInStringTable(offs[0]), SectionNumber: 1, StorageClass: types.SymClassExternal}
	sym := make([]byte, types.SymbolSize)
	s.Put(sym)
	buf.Write(sym)
	buf.Write(strTab)

	return arwriter.NewArchiveMember{
		Buf:          buf.Bytes(),
		ObjectReader: nativeObjectReader,
		MemberName:   importName,
	}
}

// createNullThunk builds the ".idata$5"/".idata$4" zero-filled
// terminator entries for the import lookup and address tables.
func (f *objectFactory) createNullThunk(importName string) arwriter.NewArchiveMember {
	vaSize := uint32(4)
	align := uint32(types.SectionAlign4Bytes)
	if is64BitMachine(f.machine) {
		vaSize = 8
		align = types.SectionAlign8Bytes
	}
	strs := []string{f.nullThunkSymbol}
	strTab := writeStringTable(strs...)
	offs := stringTableOffsets(strs...)

	var buf bytes.Buffer
	hdr := types.FileHeader{
		Machine:          f.machine,
		NumberOfSections: 2,
		NumberOfSymbols:  1,
		Characteristics:  characteristics32(f.machine),
	}
	ilt := types.SectionHeader{
		Name:            types.SectionName(".idata$5"),
		SizeOfRawData:   vaSize,
		Characteristics: types.SectionCntInitializedData | align | types.SectionMemRead | types.SectionMemWrite,
	}
	iat := types.SectionHeader{
		Name:            types.SectionName(".idata$4"),
		SizeOfRawData:   vaSize,
		Characteristics: types.SectionCntInitializedData | align | types.SectionMemRead | types.SectionMemWrite,
	}
	ilt.PointerToRawData = types.FileHeaderSize + 2*types.SectionHeaderSize
	iat.PointerToRawData = ilt.PointerToRawData + vaSize
	hdr.PointerToSymbolTable = iat.PointerToRawData + vaSize

	hb := make([]byte, types.FileHeaderSize)
	hdr.Put(hb)
	buf.Write(hb)
	sb := make([]byte, types.SectionHeaderSize)
	ilt.Put(sb)
	buf.Write(sb)
	iat.Put(sb)
	buf.Write(sb)
	buf.Write(make([]byte, vaSize))
	buf.Write(make([]byte, vaSize))

	s := types.Symbol{ShortName: types.NameInStringTable(offs[0]), SectionNumber: 1, StorageClass: types.SymClassExternal}
	sym := make([]byte, types.SymbolSize)
	s.Put(sym)
	buf.Write(sym)
	buf.Write(strTab)

	return arwriter.NewArchiveMember{
		Buf:          buf.Bytes(),
		ObjectReader: nativeObjectReader,
		MemberName:   importName,
	}
}

// createShortImport builds one short-import member: a 20-byte header
// followed by the two (or three, with an export name) NUL-terminated
// strings a linker needs to resolve a single export.
func createShortImport(importName string, sym string, ordinal uint16, importType types.ImportType, nameType types.ImportNameType, exportName string, machine types.MachineType) arwriter.NewArchiveMember {
	var buf bytes.Buffer
	hdrBuf := make([]byte, types.ImportObjectHeaderSize)
	size := len(importName) + len(sym) + 2
	if exportName != "" {
		size += len(exportName) + 1
	}
	h := types.ImportObjectHeader{
		Sig2:          0xffff,
		Machine:       machine,
		SizeOfData:    uint32(size),
		OrdinalOrHint: ordinal,
		TypeAndName:   types.MakeTypeAndName(nameType, importType),
	}
	h.Put(hdrBuf)
	buf.Write(hdrBuf)
	buf.WriteString(sym)
	buf.WriteByte(0)
	buf.WriteString(importName)
	buf.WriteByte(0)
	if exportName != "" {
		buf.WriteString(exportName)
		buf.WriteByte(0)
	}

	return arwriter.NewArchiveMember{
		Buf:          buf.Bytes(),
		ObjectReader: readerForShortImport,
		MemberName:   importName,
	}
}

// createWeakExternal builds one of the pair of records (the plain one,
// or the "__imp_"-prefixed one when useImpPrefix is set) that alias an
// export with no code of its own onto another exported symbol.
func createWeakExternal(importName, weak, imp string, useImpPrefix bool, machine types.MachineType) arwriter.NewArchiveMember {
	prefix := ""
	if useImpPrefix {
		prefix = "__imp_"
	}
	strs := []string{prefix + imp, prefix + weak}
	strTab := writeStringTable(strs...)
	offs := stringTableOffsets(strs...)

	var buf bytes.Buffer
	hdr := types.FileHeader{
		Machine:          machine,
		NumberOfSections: 1,
		NumberOfSymbols:  5,
		Characteristics:  characteristics32(machine),
	}
	section := types.SectionHeader{
		Name:            types.SectionName(".drectve"),
		Characteristics: types.SectionLnkInfo | types.SectionLnkRemove,
	}
	hdr.PointerToSymbolTable = types.FileHeaderSize + types.SectionHeaderSize

	hb := make([]byte, types.FileHeaderSize)
	hdr.Put(hb)
	buf.Write(hb)
	sb := make([]byte, types.SectionHeaderSize)
	section.Put(sb)
	buf.Write(sb)

	writeSym := func(name [8]byte, section int16, class uint8, naux uint8) {
		s := types.Symbol{ShortName: name, SectionNumber: section, StorageClass: class, NumberOfAuxSymbols: naux}
		b := make([]byte, types.SymbolSize)
		s.Put(b)
		buf.Write(b)
	}
	writeSym(types.SectionName("@comp.id"), -1, types.SymClassStatic, 0)
	writeSym(types.SectionName("@feat.00"), -1, types.SymClassStatic, 0)
	writeSym(types.NameInStringTable(offs[0]), 0, types.SymClassExternal, 0)
	writeSym(types.NameInStringTable(offs[1]), 0, types.SymClassWeakExternal, 1)

	aux := types.WeakExternalAux{TagIndex: 2, Characteristics: types.WeakExternalSearchAlias}
	ab := make([]byte, types.SymbolSize)
	aux.Put(ab)
	buf.Write(ab)

	buf.Write(strTab)

	return arwriter.NewArchiveMember{
		Buf:          buf.Bytes(),
		ObjectReader: nativeObjectReader,
		MemberName:   importName,
	}
}

// replace substitutes the first occurrence of from with to in s,
// falling back to a leading-underscore-insensitive match (mirroring
// the way a decorated C symbol and its undecorated export name often
// differ only in that leading underscore).
func replace(s, from, to string) (string, error) {
	if idx := strings.Index(s, from); idx >= 0 {
		return s[:idx] + to + s[idx+len(from):], nil
	}
	if strings.HasPrefix(from, "_") && strings.HasPrefix(to, "_") {
		if r, err := replace(s, from[1:], to[1:]); err == nil {
			return r, nil
		}
	}
	return "", fmt.Errorf("%s: replacing %q with %q failed", s, from, to)
}

// getNameType decides how the linker should transform symbolName when
// matching it against the DLL's export table.
func getNameType(symbolName, extName string, machine types.MachineType, mingw bool) types.ImportNameType {
	if strings.HasPrefix(extName, "_") && strings.Contains(extName, "@") && !mingw {
		return types.ImportNameName
	}
	if symbolName != extName {
		return types.ImportNameNameUndecorate
	}
	if machine == types.MachineI386 && strings.HasPrefix(symbolName, "_") {
		return types.ImportNameNameNoprefix
	}
	return types.ImportNameName
}

// WriteImportLibrary assembles a complete import library archive for
// importName's exports and streams it to w.
func WriteImportLibrary(w *bytes.Buffer, importName string, exports []ShortExport, machine types.MachineType, mingw bool) error {
	nativeMachine := machine
	if machine == types.MachineARM64EC {
		nativeMachine = types.MachineARM64
	}

	factory, err := newObjectFactory(importName, nativeMachine)
	if err != nil {
		return err
	}

	members := []arwriter.NewArchiveMember{
		factory.createImportDescriptor(importName),
		factory.createNullImportDescriptor(importName),
		factory.createNullThunk(importName),
	}

	for _, e := range exports {
		if e.Private {
			continue
		}
		importType := types.ImportCode
		if e.Data {
			importType = types.ImportData
		}
		if e.Constant {
			importType = types.ImportConst
		}

		symbolName := e.SymbolName
		if symbolName == "" {
			symbolName = e.Name
		}
		name := symbolName
		if e.ExtName != "" {
			replaced, err := replace(symbolName, e.Name, e.ExtName)
			if err != nil {
				return err
			}
			name = replaced
		}

		if e.AliasTarget != "" && name != e.AliasTarget {
			members = append(members,
				createWeakExternal(importName, name, e.AliasTarget, false, machine),
				createWeakExternal(importName, name, e.AliasTarget, true, machine),
			)
			continue
		}

		nameType := types.ImportNameName
		if e.Noname {
			nameType = types.ImportNameOrdinal
		} else {
			nameType = getNameType(symbolName, e.Name, machine, mingw)
		}

		var exportName string
		if importType == types.ImportCode && machine.IsARM64EC() {
			if mangled, ok := mangler.Mangle(name); ok {
				nameType = types.ImportNameNameExportas
				exportName = name
				name = mangled
			} else {
				nameType = types.ImportNameNameExportas
				if demangled, ok := mangler.Demangle(name); ok {
					exportName = demangled
				}
			}
		}

		members = append(members, createShortImport(importName, name, e.Ordinal, importType, nameType, exportName, machine))
	}

	kind := arwriter.KindCOFF
	if mingw {
		kind = arwriter.KindGNU
	}
	return arwriter.WriteArchive(w, kind, false, machine.IsARM64EC(), members)
}
