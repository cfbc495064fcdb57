package objreader

import (
	"testing"

	"github.com/appsworld/ar-archive-writer/types"
)

func buildShortImport(machine types.MachineType, importType types.ImportType, sym, importName string) []byte {
	buf := make([]byte, types.ImportObjectHeaderSize)
	h := types.ImportObjectHeader{
		Sig2:        0xffff,
		Machine:     machine,
		TypeAndName: types.MakeTypeAndName(types.ImportNameName, importType),
	}
	h.Put(buf)
	buf = append(buf, []byte(sym)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(importName)...)
	buf = append(buf, 0)
	return buf
}

func TestParseShortImportSymbolsCode(t *testing.T) {
	buf := buildShortImport(types.MachineAMD64, types.ImportCode, "DoThing", "thing.dll")
	var got []string
	if _, err := ParseShortImportSymbols(buf, func(name []byte) error {
		got = append(got, string(name))
		return nil
	}); err != nil {
		t.Fatalf("ParseShortImportSymbols: %v", err)
	}
	want := []string{"__imp_DoThing", "DoThing"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseShortImportSymbolsDataOnly(t *testing.T) {
	buf := buildShortImport(types.MachineAMD64, types.ImportData, "DataThing", "thing.dll")
	var got []string
	if _, err := ParseShortImportSymbols(buf, func(name []byte) error {
		got = append(got, string(name))
		return nil
	}); err != nil {
		t.Fatalf("ParseShortImportSymbols: %v", err)
	}
	if len(got) != 1 || got[0] != "__imp_DataThing" {
		t.Errorf("got %v, want only __imp_DataThing", got)
	}
}

func TestParseShortImportSymbolsARM64EC(t *testing.T) {
	buf := buildShortImport(types.MachineARM64EC, types.ImportCode, "#PlainName", "thing.dll")
	var got []string
	if _, err := ParseShortImportSymbols(buf, func(name []byte) error {
		got = append(got, string(name))
		return nil
	}); err != nil {
		t.Fatalf("ParseShortImportSymbols: %v", err)
	}
	want := []string{"__imp_PlainName", "PlainName", "__imp_aux_PlainName", "#PlainName"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIsECObjectFileShortImport(t *testing.T) {
	buf := buildShortImport(types.MachineAMD64, types.ImportCode, "Sym", "d.dll")
	if !IsECObjectFile(buf) {
		t.Error("an AMD64 short import should be treated as an EC object")
	}
	buf = buildShortImport(types.MachineARM64, types.ImportCode, "Sym", "d.dll")
	if IsECObjectFile(buf) {
		t.Error("a plain ARM64 short import should not be treated as an EC object")
	}
}

func TestGetXCOFFMemberAlignmentDefaultsWhenNotXCOFF(t *testing.T) {
	if got := GetXCOFFMemberAlignment([]byte("not xcoff")); got != 1<<aixPageLog2 {
		t.Errorf("got %d, want default page alignment", got)
	}
}
