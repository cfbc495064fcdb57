package arwriter

import "testing"

func TestAlignTo(t *testing.T) {
	cases := []struct {
		size, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{7, 3, 9},
	}
	for _, c := range cases {
		if got := AlignTo(c.size, c.align); got != c.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", c.size, c.align, got, c.want)
		}
	}
}

func TestOffsetToAlignment(t *testing.T) {
	if got := OffsetToAlignment(5, 8); got != 3 {
		t.Errorf("OffsetToAlignment(5, 8) = %d, want 3", got)
	}
	if got := OffsetToAlignment(8, 8); got != 0 {
		t.Errorf("OffsetToAlignment(8, 8) = %d, want 0", got)
	}
}

func TestAlignToPowerOf2(t *testing.T) {
	if got := alignToPowerOf2(10, 8); got != 16 {
		t.Errorf("alignToPowerOf2(10, 8) = %d, want 16", got)
	}
	if got := alignToPowerOf2(16, 8); got != 16 {
		t.Errorf("alignToPowerOf2(16, 8) = %d, want 16", got)
	}
}

func TestAlignToPowerOf2PanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a non-power-of-2 alignment")
		}
	}()
	alignToPowerOf2(10, 6)
}
