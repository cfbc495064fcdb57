package arwriter

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func TestComputeMemberDataAssignsOffsets(t *testing.T) {
	members := []NewArchiveMember{
		{Buf: []byte("aaaa"), ObjectReader: fakeReader("sym_a"), MemberName: "a.o"},
		{Buf: []byte("bbbb"), ObjectReader: fakeReader("sym_b"), MemberName: "b.o"},
	}
	symNames := &bytes.Buffer{}
	data, err := computeMemberData(KindGNU, false, members, nil, symNames)
	if err != nil {
		t.Fatalf("computeMemberData: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 members, got %d", len(data))
	}
	if symNames.String() != "sym_a\x00sym_b\x00" {
		t.Errorf("unexpected symbol name stream: %q", symNames.String())
	}
	if len(data[0].symbols) != 1 || data[0].symbols[0] != 0 {
		t.Errorf("member 0 symbol offsets = %v, want [0]", data[0].symbols)
	}
	if len(data[1].symbols) != 1 || data[1].symbols[0] != 6 {
		t.Errorf("member 1 symbol offsets = %v, want [6]", data[1].symbols)
	}
}

func TestComputeMemberDataDarwinPadsAndAssignsUniqueMtimes(t *testing.T) {
	members := []NewArchiveMember{
		{Buf: []byte("123"), ObjectReader: fakeReader(), MemberName: "dup.o", MTime: 999},
		{Buf: []byte("456"), ObjectReader: fakeReader(), MemberName: "dup.o", MTime: 999},
	}
	symNames := &bytes.Buffer{}
	data, err := computeMemberData(KindDarwin, false, members, nil, symNames)
	if err != nil {
		t.Fatalf("computeMemberData: %v", err)
	}
	if len(data[0].data) <= len(members[0].Buf) {
		t.Error("expected Darwin member data to carry alignment padding")
	}
	// The BSD-style header's mtime field follows the 16-byte "#1/<len>"
	// name field.
	for i, want := range []uint64{0, 1} {
		got, _ := strconv.ParseUint(strings.TrimSpace(string(data[i].header[16:28])), 10, 64)
		if got != want {
			t.Errorf("member %d mtime = %d, want %d", i, got, want)
		}
	}
}

func TestComputeMemberDataAcceptsSmallMember(t *testing.T) {
	huge := make([]byte, 1)
	members := []NewArchiveMember{
		{Buf: huge, ObjectReader: fakeReader(), MemberName: "x.o"},
	}
	symNames := &bytes.Buffer{}
	_, err := computeMemberData(KindGNU, false, members, nil, symNames)
	if err != nil {
		t.Fatalf("unexpected error for a small member: %v", err)
	}
}

// bigArchiveHeaderField reads back one of the fixed-width decimal
// fields (size, next, prev, in that order) from a rendered AIX
// big-archive member header.
func bigArchiveHeaderField(header []byte, n int) uint64 {
	field := string(header[n*20 : n*20+20])
	v, _ := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
	return v
}

func TestComputeAIXMemberDataThreadsPrevNext(t *testing.T) {
	members := []NewArchiveMember{
		{Buf: []byte("aaaa"), ObjectReader: fakeReader("sym_a"), MemberName: "a.o"},
		{Buf: []byte("bbbb"), ObjectReader: fakeReader("sym_b"), MemberName: "b.o"},
		{Buf: []byte("cccc"), ObjectReader: fakeReader("sym_c"), MemberName: "c.o"},
	}
	symNames := &bytes.Buffer{}
	data, err := computeMemberData(KindAIXBig, false, members, nil, symNames)
	if err != nil {
		t.Fatalf("computeMemberData: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("expected 3 members, got %d", len(data))
	}

	if prev := bigArchiveHeaderField(data[0].header, 2); prev != 0 {
		t.Errorf("first member prevOffset = %d, want 0", prev)
	}
	if next := bigArchiveHeaderField(data[2].header, 1); next != 0 {
		t.Errorf("last member nextOffset = %d, want 0", next)
	}

	offsets := make([]uint64, len(data))
	pos := uint64(bigArchiveFixedHeaderSize)
	for i, m := range data {
		pos += m.preHeadPadSize
		offsets[i] = pos
		pos += uint64(len(m.header)) + uint64(len(m.data)) + uint64(len(m.padding))
	}

	for i := 1; i < len(data); i++ {
		if prev := bigArchiveHeaderField(data[i].header, 2); prev != offsets[i-1] {
			t.Errorf("member %d prevOffset = %d, want %d", i, prev, offsets[i-1])
		}
	}
	for i := 0; i < len(data)-1; i++ {
		if next := bigArchiveHeaderField(data[i].header, 1); next != offsets[i+1] {
			t.Errorf("member %d nextOffset = %d, want %d", i, next, offsets[i+1])
		}
	}
}

func TestWriteSymbolsDeduplicatesViaMap(t *testing.T) {
	symMap := newSymMap()
	symNames := &bytes.Buffer{}
	reader := fakeReader("dup")
	if _, err := writeSymbols(symMap, 0, reader, nil, symNames); err != nil {
		t.Fatalf("writeSymbols: %v", err)
	}
	if _, err := writeSymbols(symMap, 1, reader, nil, symNames); err != nil {
		t.Fatalf("writeSymbols: %v", err)
	}
	if symMap.Map["dup"] != 0 {
		t.Errorf("expected first writer to win, map points at member %d", symMap.Map["dup"])
	}
	if symNames.String() != "dup\x00" {
		t.Errorf("expected the duplicate to be skipped in the name stream, got %q", symNames.String())
	}
}

func TestWriteSymbolsImportDescriptorMirroredIntoECMap(t *testing.T) {
	symMap := newSymMap()
	symMap.UseECMap = true
	symNames := &bytes.Buffer{}
	reader := fakeReader("__IMPORT_DESCRIPTOR_thing")
	if _, err := writeSymbols(symMap, 0, reader, nil, symNames); err != nil {
		t.Fatalf("writeSymbols: %v", err)
	}
	if _, ok := symMap.EC["__IMPORT_DESCRIPTOR_thing"]; !ok {
		t.Error("expected import descriptor symbol to be mirrored into the EC map")
	}
}
