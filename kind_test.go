package arwriter

import "testing"

func TestKindPredicates(t *testing.T) {
	cases := []struct {
		kind                             ArchiveKind
		bsdLike, is64, darwin, aixBig, coff bool
	}{
		{KindGNU, false, false, false, false, false},
		{KindGNU64, false, true, false, false, false},
		{KindBSD, true, false, false, false, false},
		{KindDarwin, true, false, true, false, false},
		{KindDarwin64, true, true, true, false, false},
		{KindCOFF, false, false, false, false, true},
		{KindAIXBig, false, true, false, true, false},
	}
	for _, c := range cases {
		t.Run(c.kind.String(), func(t *testing.T) {
			if got := IsBSDLike(c.kind); got != c.bsdLike {
				t.Errorf("IsBSDLike = %v, want %v", got, c.bsdLike)
			}
			if got := Is64Bit(c.kind); got != c.is64 {
				t.Errorf("Is64Bit = %v, want %v", got, c.is64)
			}
			if got := IsDarwin(c.kind); got != c.darwin {
				t.Errorf("IsDarwin = %v, want %v", got, c.darwin)
			}
			if got := IsAIXBig(c.kind); got != c.aixBig {
				t.Errorf("IsAIXBig = %v, want %v", got, c.aixBig)
			}
			if got := IsCOFF(c.kind); got != c.coff {
				t.Errorf("IsCOFF = %v, want %v", got, c.coff)
			}
		})
	}
}

func TestNeedsSymtabOnEmpty(t *testing.T) {
	for _, k := range []ArchiveKind{KindDarwin, KindDarwin64, KindCOFF} {
		if !needsSymtabOnEmpty(k) {
			t.Errorf("%s should need a symbol table even when empty", k)
		}
	}
	for _, k := range []ArchiveKind{KindGNU, KindGNU64, KindBSD, KindAIXBig} {
		if needsSymtabOnEmpty(k) {
			t.Errorf("%s should not need a symbol table when empty", k)
		}
	}
}
