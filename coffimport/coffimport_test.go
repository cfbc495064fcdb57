package coffimport

import (
	"bytes"
	"testing"

	"github.com/appsworld/ar-archive-writer/types"
)

func TestWriteImportLibraryCodeExport(t *testing.T) {
	exports := []ShortExport{
		{Name: "DoThing", Ordinal: 1},
	}
	var out bytes.Buffer
	if err := WriteImportLibrary(&out, "thing.dll", exports, types.MachineAMD64, false); err != nil {
		t.Fatalf("WriteImportLibrary: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty archive")
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("!<arch>\n")) {
		t.Errorf("expected GNU/COFF archive magic, got %q", out.Bytes()[:8])
	}
}

func TestWriteImportLibraryARM64EC(t *testing.T) {
	exports := []ShortExport{
		{Name: "Compute", Ordinal: 2},
	}
	var out bytes.Buffer
	if err := WriteImportLibrary(&out, "thing.dll", exports, types.MachineARM64EC, false); err != nil {
		t.Fatalf("WriteImportLibrary: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty archive")
	}
}

func TestWriteImportLibraryWeakAlias(t *testing.T) {
	exports := []ShortExport{
		{Name: "RealFunc", Ordinal: 1},
		{Name: "AliasFunc", AliasTarget: "RealFunc", Ordinal: 2},
	}
	var out bytes.Buffer
	if err := WriteImportLibrary(&out, "thing.dll", exports, types.MachineAMD64, false); err != nil {
		t.Fatalf("WriteImportLibrary: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty archive")
	}
}

func TestReplace(t *testing.T) {
	got, err := replace("_DoThing@4", "DoThing", "RealName")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got != "_RealName@4" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceUnderscoreFallback(t *testing.T) {
	got, err := replace("DoThing", "_DoThing", "_RealName")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got != "RealName" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceFailure(t *testing.T) {
	if _, err := replace("Foo", "Bar", "Baz"); err == nil {
		t.Error("expected an error when from is not present")
	}
}

func TestGetNameType(t *testing.T) {
	if got := getNameType("_DoThing@4", "_DoThing@4", types.MachineI386, false); got != types.ImportNameName {
		t.Errorf("stdcall-decorated name: got %v, want ImportNameName", got)
	}
	if got := getNameType("_DoThing", "DoThing", types.MachineI386, false); got != types.ImportNameNameUndecorate {
		t.Errorf("decorated vs plain: got %v, want ImportNameNameUndecorate", got)
	}
	if got := getNameType("_DoThing", "_DoThing", types.MachineI386, false); got != types.ImportNameNameNoprefix {
		t.Errorf("i386 leading underscore: got %v, want ImportNameNameNoprefix", got)
	}
}
