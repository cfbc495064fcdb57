package arwriter

import (
	"bytes"
	"strings"
)

const bigArchiveFixedHeaderSize = 8 + 20*6

// paddingData is appended, not zero bytes, so that a tool scanning raw
// bytes for member boundaries doesn't mistake padding for data; GNU ar
// uses the same convention.
var paddingData = []byte{'\n', '\n', '\n', '\n', '\n', '\n', '\n', '\n'}

// computeMemberData performs the single forward pass that assigns every
// member its final header bytes, payload, and inter-member padding. It
// is the only place layout decisions are made; everything downstream
// just streams these results out in order.
func computeMemberData(kind ArchiveKind, thin bool, newMembers []NewArchiveMember, symMap *SymMap, symNames *bytes.Buffer) ([]memberData, error) {
	if IsAIXBig(kind) {
		return computeAIXMemberData(newMembers, symMap, symNames)
	}

	result := make([]memberData, len(newMembers))
	names := newMemberNameTable()

	var pos uint64

	var filenameCount map[string]int
	uniqueTimestamps := IsDarwin(kind)
	if uniqueTimestamps {
		filenameCount = make(map[string]int)
		for _, m := range newMembers {
			filenameCount[m.MemberName]++
		}
	}
	seenCount := make(map[string]int)

	var hasObject bool

	for i, nm := range newMembers {
		mtime := nm.MTime
		if uniqueTimestamps && filenameCount[nm.MemberName] > 1 {
			mtime = uint64(seenCount[nm.MemberName])
			seenCount[nm.MemberName]++
		}

		is64 := nm.ObjectReader.Is64BitObjectFile(nm.Buf)
		isEC := nm.ObjectReader.IsECObjectFile(nm.Buf)
		hasObject = true

		symOffsets, err := writeSymbols(symMap, i, nm.ObjectReader, nm.Buf, symNames)
		if err != nil {
			return nil, err
		}

		payload := nm.Buf
		if thin {
			payload = nil
		}
		memberPadding := uint64(0)
		if IsDarwin(kind) {
			memberPadding = OffsetToAlignment(uint64(len(payload)), 8)
		}
		size := uint64(len(nm.Buf)) + memberPadding
		if size > MaxMemberSize {
			return nil, ErrMemberTooLarge
		}
		tailPadding := OffsetToAlignment(uint64(len(payload))+memberPadding, 2)

		var hdr strings.Builder
		printMemberHeader(&hdr, kind, pos, names, thin, nm.MemberName, mtime, nm.UID, nm.GID, nm.Perms, size)
		headerBytes := []byte(hdr.String())

		data := payload
		if memberPadding > 0 {
			padded := make([]byte, 0, len(payload)+int(memberPadding))
			padded = append(padded, payload...)
			padded = append(padded, paddingData[:memberPadding]...)
			data = padded
		}

		result[i] = memberData{
			name:           nm.MemberName,
			symbols:        symOffsets,
			header:         headerBytes,
			data:           data,
			padding:        paddingData[:tailPadding],
			preHeadPadSize: 0,
			is64Bit:        is64,
			isEC:           isEC,
		}
		pos += uint64(len(result[i].header)) + uint64(len(result[i].data)) + uint64(len(result[i].padding))
	}

	if hasObject && symNames.Len() == 0 && !IsCOFF(kind) {
		symNames.WriteString("\x00\x00\x00")
	}

	return result, nil
}

// bigArchiveHeaderLen returns the exact rendered length of a big-archive
// member header for name, needed up front to compute the padding placed
// before a member's header so that its data starts aligned.
func bigArchiveHeaderLen(name string) uint64 {
	l := uint64(20*3 + 12 + 12 + 12 + 12 + 4 + len(name) + 2)
	if len(name)%2 != 0 {
		l++
	}
	return l
}

// aixMemberLayout is the per-member result of computeAIXMemberData's
// first pass: everything needed to render a member's header once its
// neighbors' positions are known.
type aixMemberLayout struct {
	nm           NewArchiveMember
	mtime        uint64
	is64         bool
	isEC         bool
	symOffsets   []uint64
	padding      []byte
	preHeadPad   uint64
	headerOffset uint64
}

// computeAIXMemberData lays out AIX big-archive members in two passes.
// The first pass fixes every member's byte offset and inter-member
// padding, the same way the GNU/Darwin/COFF pass does; the second
// renders each member's header now that its immediate predecessor's and
// successor's offsets are both known, since the format threads members
// together as a doubly linked list rather than relying solely on the
// trailing member table.
func computeAIXMemberData(newMembers []NewArchiveMember, symMap *SymMap, symNames *bytes.Buffer) ([]memberData, error) {
	layouts := make([]aixMemberLayout, len(newMembers))

	var pos uint64 = bigArchiveFixedHeaderSize
	var hasObject bool

	for i, nm := range newMembers {
		is64 := nm.ObjectReader.Is64BitObjectFile(nm.Buf)
		isEC := nm.ObjectReader.IsECObjectFile(nm.Buf)
		hasObject = true

		symOffsets, err := writeSymbols(symMap, i, nm.ObjectReader, nm.Buf, symNames)
		if err != nil {
			return nil, err
		}

		if uint64(len(nm.Buf)) > MaxMemberSize {
			return nil, ErrMemberTooLarge
		}

		headerLen := bigArchiveHeaderLen(nm.MemberName)
		align := uint64(nm.ObjectReader.GetXCOFFMemberAlignment(nm.Buf))
		if align < 2 {
			align = 2
		}
		dataStart := pos + headerLen
		preHeadPad := alignToPowerOf2(dataStart, align) - dataStart

		var padding []byte
		if len(nm.Buf)%2 != 0 {
			padding = []byte{0}
		}

		headerOffset := pos + preHeadPad
		layouts[i] = aixMemberLayout{
			nm:           nm,
			mtime:        nm.MTime,
			is64:         is64,
			isEC:         isEC,
			symOffsets:   symOffsets,
			padding:      padding,
			preHeadPad:   preHeadPad,
			headerOffset: headerOffset,
		}
		pos = headerOffset + headerLen + uint64(len(nm.Buf)) + uint64(len(padding))
	}

	result := make([]memberData, len(newMembers))
	for i, l := range layouts {
		var prevOffset, nextOffset uint64
		if i > 0 {
			prevOffset = layouts[i-1].headerOffset
		}
		if i+1 < len(layouts) {
			nextOffset = layouts[i+1].headerOffset
		}

		var hdr strings.Builder
		printBigArchiveMemberHeader(&hdr, l.nm.MemberName, uint64(len(l.nm.Buf)), prevOffset, nextOffset, l.mtime, l.nm.UID, l.nm.GID, l.nm.Perms)

		result[i] = memberData{
			name:           l.nm.MemberName,
			symbols:        l.symOffsets,
			header:         []byte(hdr.String()),
			data:           l.nm.Buf,
			padding:        l.padding,
			preHeadPadSize: l.preHeadPad,
			is64Bit:        l.is64,
			isEC:           l.isEC,
		}
	}

	if hasObject && symNames.Len() == 0 {
		symNames.WriteString("\x00\x00\x00")
	}

	return result, nil
}
