package arwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// sym64Threshold is the point at which a 32-bit archive format must be
// promoted to its 64-bit counterpart because a member offset would
// otherwise overflow a 32-bit field.
const sym64Threshold = uint64(1) << 32

// WriteArchive lays out newMembers as an archive of the requested kind
// and streams the result to w. thin selects the GNU thin-archive
// convention (members referenced by path rather than embedded); isEC
// additionally builds the ARM64EC second-chance symbol view. Kind may
// be silently promoted (COFF too large for a 16-bit member count falls
// back to GNU; a 32-bit format whose offsets would overflow promotes to
// its 64-bit counterpart) to stay representable.
func WriteArchive(w io.Writer, kind ArchiveKind, thin bool, isEC bool, newMembers []NewArchiveMember) error {
	if thin && IsBSDLike(kind) {
		return fmt.Errorf("arwriter: thin archives are not supported for kind %s", kind)
	}
	if kind == KindCOFF && len(newMembers) > 0xfffe {
		kind = KindGNU
	}

	var symMap *SymMap
	if IsCOFF(kind) {
		symMap = newSymMap()
		symMap.UseECMap = isEC
	}

	symNames := &bytes.Buffer{}
	members, err := computeMemberData(kind, thin, newMembers, symMap, symNames)
	if err != nil {
		return err
	}

	if IsAIXBig(kind) {
		return writeAIXBigArchive(w, members, symNames.Bytes())
	}

	stringTable := buildStringTable(kind, thin, newMembers, members)

	var numSyms int
	for _, m := range members {
		numSyms += len(m.symbols)
	}

	headersSize := computeHeadersSize(kind, uint64(numSyms), uint64(symNames.Len()), symMap, len(members), uint64(len(stringTable)))

	if !Is64Bit(kind) {
		var lastHeaderOffset uint64
		pos := headersSize
		for _, m := range members {
			lastHeaderOffset = pos
			pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
		}
		if lastHeaderOffset >= sym64Threshold {
			if IsDarwin(kind) {
				kind = KindDarwin64
			} else {
				kind = KindGNU64
			}
			headersSize = computeHeadersSize(kind, uint64(numSyms), uint64(symNames.Len()), symMap, len(members), uint64(len(stringTable)))
		}
	}

	magic := "!<arch>\n"
	if thin {
		magic = "!<thin>\n"
	}
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}

	out := &bytes.Buffer{}
	if err := writeSymbolTable(out, kind, members, symNames.Bytes(), headersSize, true); err != nil {
		return err
	}
	if symMap != nil {
		writeSymbolMap(out, kind, members, symMap, headersSize)
	}
	if len(stringTable) > 0 {
		hdr := stringTableMemberHeader(uint64(len(stringTable)))
		out.WriteString(hdr)
		out.WriteString(stringTable)
	}
	if symMap != nil && len(symMap.EC) > 0 {
		writeECSymbols(out, kind, symMap, headersSize)
	}
	if _, err := w.Write(out.Bytes()); err != nil {
		return err
	}

	for _, m := range members {
		if _, err := w.Write(m.header); err != nil {
			return err
		}
		if _, err := w.Write(m.data); err != nil {
			return err
		}
		if _, err := w.Write(m.padding); err != nil {
			return err
		}
	}
	return nil
}

// buildStringTable renders the shared "//" long-names member body from
// every member name that needed one, in first-reference order.
func buildStringTable(kind ArchiveKind, thin bool, newMembers []NewArchiveMember, members []memberData) string {
	names := newMemberNameTable()
	for _, nm := range newMembers {
		if IsBSDLike(kind) || !useStringTable(thin, nm.MemberName) {
			continue
		}
		names.recordName(kind, thin, nm.MemberName)
	}
	return computeStringTable(names.names.String())
}

// writeAIXBigArchive implements the trailer-table layout unique to the
// AIX big archive format: members come first, followed by a member
// table and then one or two global symbol tables (32-bit, then 64-bit),
// each of which is itself a regular big-archive member, threaded
// together by byte offsets recorded in the fixed-size leading header.
func writeAIXBigArchive(w io.Writer, members []memberData, symNames []byte) error {
	var memberOffsets []uint64
	pos := uint64(bigArchiveFixedHeaderSize)
	for _, m := range members {
		pos += m.preHeadPadSize
		memberOffsets = append(memberOffsets, pos)
		pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
	}
	memberTableEnd := pos

	nameTable := &bytes.Buffer{}
	for _, m := range members {
		nameTable.WriteString(m.name)
		nameTable.WriteByte(0)
	}

	var idx32, idx64 []int
	for i, m := range members {
		if m.is64Bit {
			idx64 = append(idx64, i)
		} else {
			idx32 = append(idx32, i)
		}
	}

	var memberTableBody bytes.Buffer
	fmt.Fprintf(&memberTableBody, "%-20d", len(members))
	for _, off := range memberOffsets {
		fmt.Fprintf(&memberTableBody, "%-20d", off)
	}
	memberTableBody.Write(nameTable.Bytes())
	if memberTableBody.Len()%2 != 0 {
		memberTableBody.WriteByte(0)
	}

	lastMemberHeaderOffset := lastOffset(memberOffsets)
	memberTableHeaderLen := bigArchiveHeaderLen("")
	afterMemberTable := AlignTo(memberTableEnd+memberTableHeaderLen+uint64(memberTableBody.Len()), 2)

	var globalSymOffset, globalSymOffset64 uint64
	if len(idx32) > 0 {
		globalSymOffset = afterMemberTable
	}

	sym32 := buildAIXGlobalSymTab(members, memberOffsets, idx32, symNames)
	sym64 := buildAIXGlobalSymTab(members, memberOffsets, idx64, symNames)

	if len(idx64) > 0 {
		if len(idx32) > 0 {
			globalSymOffset64 = globalSymOffset + uint64(len(sym32))
		} else {
			globalSymOffset64 = afterMemberTable
		}
	}

	memberTableNext := globalSymOffset
	if memberTableNext == 0 {
		memberTableNext = globalSymOffset64
	}
	var memberTableHdr strings.Builder
	printBigArchiveMemberHeader(&memberTableHdr, "", uint64(memberTableBody.Len()), lastMemberHeaderOffset, memberTableNext, 0, 0, 0, 0)

	fix := bigArchiveFixedHeader{
		memOffset:        memberTableEnd,
		globSymOffset:    globalSymOffset,
		globSym64Offset:  globalSymOffset64,
		firstChildOffset: firstNonEmptyOffset(memberOffsets),
		lastChildOffset:  lastMemberHeaderOffset,
		freeOffset:       0,
	}
	if _, err := io.WriteString(w, "<bigaf>\n"); err != nil {
		return err
	}
	if err := fix.write(w); err != nil {
		return err
	}
	for _, m := range members {
		if m.preHeadPadSize > 0 {
			if _, err := w.Write(make([]byte, m.preHeadPadSize)); err != nil {
				return err
			}
		}
		if _, err := w.Write(m.header); err != nil {
			return err
		}
		if _, err := w.Write(m.data); err != nil {
			return err
		}
		if _, err := w.Write(m.padding); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, memberTableHdr.String()); err != nil {
		return err
	}
	if _, err := w.Write(memberTableBody.Bytes()); err != nil {
		return err
	}

	if len(sym32) > 0 {
		if _, err := w.Write(sym32); err != nil {
			return err
		}
	}
	if len(sym64) > 0 {
		if _, err := w.Write(sym64); err != nil {
			return err
		}
	}
	return nil
}

// buildAIXGlobalSymTab renders one AIX global symbol table (32-bit or
// 64-bit, selected by idxs) as a complete big-archive member: header,
// an 8-byte big-endian symbol count, one 8-byte big-endian member
// offset per symbol, and the symbol names themselves drawn from
// symNames. It returns nil when idxs is empty, so the table is omitted
// entirely rather than written with a zero count.
func buildAIXGlobalSymTab(members []memberData, memberOffsets []uint64, idxs []int, symNames []byte) []byte {
	if len(idxs) == 0 {
		return nil
	}
	var numSyms uint64
	for _, i := range idxs {
		numSyms += uint64(len(members[i].symbols))
	}

	var body bytes.Buffer
	var be8 [8]byte
	binary.BigEndian.PutUint64(be8[:], numSyms)
	body.Write(be8[:])
	for _, i := range idxs {
		for range members[i].symbols {
			binary.BigEndian.PutUint64(be8[:], memberOffsets[i])
			body.Write(be8[:])
		}
	}
	for _, i := range idxs {
		for _, off := range members[i].symbols {
			body.Write(symNameAt(symNames, off))
			body.WriteByte(0)
		}
	}
	if body.Len()%2 != 0 {
		body.WriteByte(0)
	}

	var hdr strings.Builder
	printBigArchiveMemberHeader(&hdr, "", uint64(body.Len()), 0, 0, 0, 0, 0, 0)
	return append([]byte(hdr.String()), body.Bytes()...)
}

// symNameAt returns the NUL-terminated symbol name starting at off
// within symNames, without its terminator.
func symNameAt(symNames []byte, off uint64) []byte {
	end := off
	for end < uint64(len(symNames)) && symNames[end] != 0 {
		end++
	}
	return symNames[off:end]
}

func firstNonEmptyOffset(offs []uint64) uint64 {
	if len(offs) == 0 {
		return 0
	}
	return offs[0]
}

func lastOffset(offs []uint64) uint64 {
	if len(offs) == 0 {
		return 0
	}
	return offs[len(offs)-1]
}

// bigArchiveFixedHeader is the AIX big-archive fixed leading header:
// six ASCII-decimal offsets into the file, each occupying a 20-byte
// field, following an 8-byte magic string.
type bigArchiveFixedHeader struct {
	memOffset        uint64
	globSymOffset    uint64
	globSym64Offset  uint64
	firstChildOffset uint64
	lastChildOffset  uint64
	freeOffset       uint64
}

func (h bigArchiveFixedHeader) write(w io.Writer) error {
	fields := []uint64{h.memOffset, h.globSymOffset, h.globSym64Offset, h.firstChildOffset, h.lastChildOffset, h.freeOffset}
	for _, f := range fields {
		var b [20]byte
		copy(b[:], fmt.Sprintf("%-20d", f))
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}
