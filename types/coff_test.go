package types

import "testing"

func TestImportObjectHeaderRoundTrip(t *testing.T) {
	h := ImportObjectHeader{
		Sig1:          0,
		Sig2:          0xffff,
		Version:       0,
		Machine:       MachineAMD64,
		TimeDateStamp: 0,
		SizeOfData:    42,
		OrdinalOrHint: 7,
		TypeAndName:   MakeTypeAndName(ImportNameName, ImportData),
	}
	buf := make([]byte, ImportObjectHeaderSize)
	h.Put(buf)

	got, ok := ParseImportObjectHeader(buf)
	if !ok {
		t.Fatal("ParseImportObjectHeader rejected a header it should accept")
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
	if got.ImportTypeField() != ImportData {
		t.Errorf("ImportTypeField() = %v, want ImportData", got.ImportTypeField())
	}
	if got.NameType() != ImportNameName {
		t.Errorf("NameType() = %v, want ImportNameName", got.NameType())
	}
}

func TestParseImportObjectHeaderRejectsBadSignature(t *testing.T) {
	buf := make([]byte, ImportObjectHeaderSize)
	if _, ok := ParseImportObjectHeader(buf); ok {
		t.Error("expected rejection of an all-zero (non sig2=0xffff) header")
	}
}

func TestMachineHelpers(t *testing.T) {
	if !MachineARM64EC.IsARM64EC() {
		t.Error("ARM64EC should report IsARM64EC")
	}
	if MachineARM64.IsARM64EC() {
		t.Error("plain ARM64 should not report IsARM64EC")
	}
	if !MachineARM64.IsAnyARM64() || !MachineARM64EC.IsAnyARM64() || !MachineARM64X.IsAnyARM64() {
		t.Error("all three ARM64 variants should report IsAnyARM64")
	}
	if MachineI386.Is64Bit() {
		t.Error("I386 should not be 64-bit")
	}
	if !MachineAMD64.Is64Bit() {
		t.Error("AMD64 should be 64-bit")
	}
}

func TestImgRelRelocationType(t *testing.T) {
	cases := map[MachineType]uint16{
		MachineAMD64:   RelocAMD64Addr32NB,
		MachineI386:    RelocI386Dir32NB,
		MachineARM64:   RelocARM64Addr32NB,
		MachineARM64EC: RelocARM64Addr32NB,
	}
	for machine, want := range cases {
		if got := ImgRelRelocationType(machine); got != want {
			t.Errorf("ImgRelRelocationType(%v) = %#x, want %#x", machine, got, want)
		}
	}
}
