package arwriter

import (
	"strings"
	"testing"
)

func TestPrintGNUSmallMemberHeader(t *testing.T) {
	var w strings.Builder
	printGNUSmallMemberHeader(&w, "foo.o", 123, 1, 2, 0644, 10)
	got := w.String()
	if len(got) != memberHeaderSize {
		t.Fatalf("header length = %d, want %d", len(got), memberHeaderSize)
	}
	if !strings.HasPrefix(got, "foo.o/") {
		t.Errorf("expected name prefix, got %q", got[:10])
	}
	if !strings.HasSuffix(got, "`\n") {
		t.Errorf("expected trailing backtick-newline, got %q", got[len(got)-4:])
	}
}

func TestPrintBSDMemberHeader(t *testing.T) {
	var w strings.Builder
	printBSDMemberHeader(&w, 0, "foo.o", 0, 0, 0, 0644, 10)
	got := w.String()
	if !strings.HasPrefix(got, "#1/") {
		t.Errorf("expected #1/ prefix, got %q", got[:3])
	}
	if !strings.Contains(got, "foo.o") {
		t.Error("expected member name embedded after header")
	}
}

func TestUseStringTable(t *testing.T) {
	if !useStringTable(true, "short") {
		t.Error("thin archives always use the string table")
	}
	if useStringTable(false, "short.o") {
		t.Error("a short name should not need the string table")
	}
	if !useStringTable(false, "a-name-longer-than-sixteen-bytes.o") {
		t.Error("a long name should need the string table")
	}
	if !useStringTable(false, "dir/file.o") {
		t.Error("a name with a path separator should need the string table")
	}
}

func TestMemberNameTableDeduplicates(t *testing.T) {
	names := newMemberNameTable()
	first := names.recordName(KindGNU, false, "really-long-member-name.o")
	second := names.recordName(KindGNU, false, "really-long-member-name.o")
	if first != second {
		t.Errorf("expected the same offset for a repeated name in non-thin mode, got %d and %d", first, second)
	}
}

func TestMemberNameTableThinAlwaysFresh(t *testing.T) {
	names := newMemberNameTable()
	first := names.recordName(KindGNU, true, "really-long-member-name.o")
	second := names.recordName(KindGNU, true, "really-long-member-name.o")
	if first == second {
		t.Error("expected distinct entries for repeated references in thin mode")
	}
}

func TestComputeStringTablePadsToEven(t *testing.T) {
	got := computeStringTable("abc/\n")
	if len(got)%2 != 0 {
		t.Errorf("expected even-length string table, got length %d", len(got))
	}
}
