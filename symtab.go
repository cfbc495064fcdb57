package arwriter

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
)

// SymMap is the COFF "second-chance" symbol map: an index from symbol
// name to the defining member, kept separate from the plain symbol
// table so a linker can resolve a symbol even when the object that
// defines it was not the first one scanned for a given name. EC holds
// the ARM64EC-specific view used to build the "/<ECSYMBOLS>" member.
type SymMap struct {
	UseECMap bool
	Map      map[string]int
	EC       map[string]int
}

func newSymMap() *SymMap {
	return &SymMap{Map: make(map[string]int), EC: make(map[string]int)}
}

// isImportDescriptor reports whether name is one of the three synthetic
// symbol names emitted by the import-library writer for a DLL's import
// descriptor, and therefore needs mirroring into the EC symbol map even
// when defined by a non-EC object.
func isImportDescriptor(name []byte) bool {
	if bytes.HasPrefix(name, []byte("__IMPORT_DESCRIPTOR_")) {
		return true
	}
	if string(name) == "__NULL_IMPORT_DESCRIPTOR" {
		return true
	}
	if len(name) > 0 && name[0] == 0x7f && bytes.HasSuffix(name, []byte("_NULL_THUNK_DATA")) {
		return true
	}
	return false
}

// writeSymbols runs the object reader's symbol iterator over buf and
// appends the archive-visible names to symNames, returning the offsets
// at which each was written. When symMap is non-nil, duplicate names
// (by first-writer-wins) are skipped entirely rather than getting their
// own symbol-table entry; a name belonging to an EC object is routed
// only into symMap.EC and never appears in the main table.
func writeSymbols(symMap *SymMap, memberIndex int, reader *ObjectReader, buf []byte, symNames *bytes.Buffer) ([]uint64, error) {
	var offsets []uint64
	emit := func(name []byte) error {
		if symMap == nil {
			offsets = append(offsets, uint64(symNames.Len()))
			symNames.Write(name)
			symNames.WriteByte(0)
			return nil
		}
		isEC := symMap.UseECMap && reader.IsECObjectFile(buf)
		target := symMap.Map
		if isEC {
			target = symMap.EC
		}
		key := string(name)
		if _, dup := target[key]; dup {
			return nil
		}
		target[key] = memberIndex
		if isEC {
			return nil
		}
		offsets = append(offsets, uint64(symNames.Len()))
		symNames.Write(name)
		symNames.WriteByte(0)
		if symMap.UseECMap && isImportDescriptor(name) {
			if _, ok := symMap.EC[key]; !ok {
				symMap.EC[key] = memberIndex
			}
		}
		return nil
	}
	if _, err := reader.GetSymbols(buf, emit); err != nil {
		return nil, err
	}
	return offsets, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// computeSymbolTableSizeAndPad returns the byte size (and trailing
// padding) of the primary symbol-table member body for kind, given the
// number of symbol entries and the accumulated symbol-name string-table
// length.
func computeSymbolTableSizeAndPad(kind ArchiveKind, numSyms uint64, offsetSize uint64, stringTableSize uint64) (uint64, uint64) {
	size := offsetSize
	if IsBSDLike(kind) {
		size += numSyms*offsetSize*2 + offsetSize
	} else {
		size += numSyms * offsetSize
	}
	size += stringTableSize
	var pad uint64
	if !IsAIXBig(kind) {
		align := uint64(2)
		if IsBSDLike(kind) {
			align = 8
		}
		pad = OffsetToAlignment(size, align)
	}
	return size + pad, pad
}

// computeSymbolMapSizeAndPad returns the byte size (and trailing
// padding) of the COFF second-chance symbol map member body.
func computeSymbolMapSizeAndPad(numObjects int, symMap *SymMap) (uint64, uint64) {
	size := uint64(8) // num_symbols + num_objects, both uint32
	size += uint64(numObjects) * 4
	for k := range symMap.Map {
		size += 2 + uint64(len(k)) + 1
	}
	pad := OffsetToAlignment(size, 2)
	return size + pad, pad
}

// computeECSymbolsSizeAndPad returns the byte size (and trailing
// padding) of the "/<ECSYMBOLS>" member body.
func computeECSymbolsSizeAndPad(symMap *SymMap) (uint64, uint64) {
	size := uint64(4)
	for k := range symMap.EC {
		size += 2 + uint64(len(k)) + 1
	}
	pad := OffsetToAlignment(size, 2)
	return size + pad, pad
}

// writeSymbolTableHeader writes the member header introducing a symbol
// table (or symbol map) member, using the convention appropriate to
// kind: an inline BSD-style name, a bare GNU slash, or an AIX
// big-archive header with an empty name.
func writeSymbolTableHeader(w *strings.Builder, kind ArchiveKind, pos uint64, name string, size uint64) {
	if IsBSDLike(kind) {
		printBSDMemberHeader(w, pos, name, 0, 0, 0, 0, size)
		return
	}
	if IsAIXBig(kind) {
		printBigArchiveMemberHeader(w, "", size, 0, 0, 0, 0, 0, 0)
		return
	}
	printGNUSmallMemberHeader(w, name, 0, 0, 0, 0, size)
}

func symbolTableMemberName(kind ArchiveKind) string {
	if IsBSDLike(kind) {
		if Is64Bit(kind) {
			return "__.SYMDEF_64"
		}
		return "__.SYMDEF"
	}
	if Is64Bit(kind) {
		return "/SYM64"
	}
	return ""
}

// computeHeadersSize returns the combined byte length of the magic,
// symbol table (and, for COFF, symbol map and EC-symbols members), and
// string-table member that precede the first real member in a non-AIX
// archive.
func computeHeadersSize(kind ArchiveKind, numSyms uint64, symNamesLen uint64, symMap *SymMap, numObjects int, stringTableLen uint64) uint64 {
	offsetSize := uint64(4)
	if Is64Bit(kind) {
		offsetSize = 8
	}
	size := uint64(len("!<arch>\n"))
	symtabSize, _ := computeSymbolTableSizeAndPad(kind, numSyms, offsetSize, symNamesLen)
	var hdr strings.Builder
	writeSymbolTableHeader(&hdr, kind, 0, symbolTableMemberName(kind), symtabSize)
	headerLen := uint64(hdr.Len())
	size += headerLen + symtabSize
	if symMap != nil {
		mapSize, _ := computeSymbolMapSizeAndPad(numObjects, symMap)
		size += headerLen + mapSize
		if len(symMap.EC) > 0 {
			ecSize, _ := computeECSymbolsSizeAndPad(symMap)
			size += headerLen + ecSize
		}
	}
	if stringTableLen > 0 {
		size += uint64(len(stringTableMemberHeader(0))) + stringTableLen
	}
	return size
}

// writeSymbolTable renders the primary symbol-table member: an entry
// count followed by one (string-offset, member-offset) pair per symbol
// for BSD-like kinds, or just a member-offset for everyone else,
// followed by the concatenated NUL-terminated symbol names.
func writeSymbolTable(w *bytes.Buffer, kind ArchiveKind, members []memberData, symNames []byte, membersOffset uint64, want64 bool) error {
	if len(symNames) == 0 && !IsDarwin(kind) && !IsCOFF(kind) {
		return nil
	}
	offsetSize := uint64(4)
	if Is64Bit(kind) {
		offsetSize = 8
	}
	var numSyms uint64
	for _, m := range members {
		if IsAIXBig(kind) && m.is64Bit != want64 {
			continue
		}
		numSyms += uint64(len(m.symbols))
	}
	size, _ := computeSymbolTableSizeAndPad(kind, numSyms, offsetSize, uint64(len(symNames)))
	var hdr strings.Builder
	writeSymbolTableHeader(&hdr, kind, uint64(w.Len()), symbolTableMemberName(kind), size)
	w.WriteString(hdr.String())

	writeWord := func(v uint64) {
		buf := make([]byte, offsetSize)
		if IsBSDLike(kind) {
			if offsetSize == 8 {
				binary.LittleEndian.PutUint64(buf, v)
			} else {
				binary.LittleEndian.PutUint32(buf, uint32(v))
			}
		} else {
			if offsetSize == 8 {
				binary.BigEndian.PutUint64(buf, v)
			} else {
				binary.BigEndian.PutUint32(buf, uint32(v))
			}
		}
		w.Write(buf)
	}

	if IsBSDLike(kind) {
		writeWord(numSyms * offsetSize * 2)
	} else {
		writeWord(numSyms)
	}

	pos := membersOffset
	for _, m := range members {
		pos += m.preHeadPadSize
		if IsAIXBig(kind) && m.is64Bit != want64 {
			pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
			continue
		}
		for _, symOff := range m.symbols {
			if IsBSDLike(kind) {
				writeWord(symOff)
			}
			writeWord(pos)
		}
		pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
	}

	if IsBSDLike(kind) {
		writeWord(uint64(len(symNames)))
	}
	w.Write(symNames)
	_, tablePad := computeSymbolTableSizeAndPad(kind, numSyms, offsetSize, uint64(len(symNames)))
	w.Write(make([]byte, tablePad))
	return nil
}

// writeSymbolMap renders the COFF second-chance "/" symbol map member:
// a per-object offset table followed by a sorted symbol-name-to-object
// index, used by linkers as a fallback when the primary symbol table
// doesn't resolve a reference.
func writeSymbolMap(w *bytes.Buffer, kind ArchiveKind, members []memberData, symMap *SymMap, membersOffset uint64) {
	size, pad := computeSymbolMapSizeAndPad(len(members), symMap)
	var hdr strings.Builder
	writeSymbolTableHeader(&hdr, kind, uint64(w.Len()), symbolTableMemberName(kind), size)
	w.WriteString(hdr.String())

	var le32 [4]byte
	binary.LittleEndian.PutUint32(le32[:], uint32(len(members)))
	w.Write(le32[:])

	pos := membersOffset
	for _, m := range members {
		binary.LittleEndian.PutUint32(le32[:], uint32(pos))
		w.Write(le32[:])
		pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
	}

	keys := sortedKeys(symMap.Map)
	binary.LittleEndian.PutUint32(le32[:], uint32(len(keys)))
	w.Write(le32[:])
	var le16 [2]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint16(le16[:], uint16(symMap.Map[k]))
		w.Write(le16[:])
	}
	for _, k := range keys {
		w.WriteString(k)
		w.WriteByte(0)
	}
	w.Write(make([]byte, pad))
}

// writeECSymbols renders the "/<ECSYMBOLS>" member carrying the
// ARM64EC-specific symbol-to-object index used by ARM64X binaries to
// disambiguate EC and native views of the same import library.
func writeECSymbols(w *bytes.Buffer, kind ArchiveKind, symMap *SymMap, pos uint64) {
	size, pad := computeECSymbolsSizeAndPad(symMap)
	var hdr strings.Builder
	printGNUSmallMemberHeader(&hdr, "/<ECSYMBOLS>", 0, 0, 0, 0, size)
	w.WriteString(hdr.String())

	keys := sortedKeys(symMap.EC)
	var le32 [4]byte
	binary.LittleEndian.PutUint32(le32[:], uint32(len(keys)))
	w.Write(le32[:])
	var le16 [2]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint16(le16[:], uint16(symMap.EC[k]))
		w.Write(le16[:])
	}
	for _, k := range keys {
		w.WriteString(k)
		w.WriteByte(0)
	}
	w.Write(make([]byte, pad))
}
