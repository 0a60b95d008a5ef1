package bits

import "testing"

func TestReadU(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xAB, 0xCD})
	v, err := r.ReadU(8)
	if err != nil || v != 0xAB {
		t.Fatalf("ReadU(8) = %d, %v; want 0xAB, nil", v, err)
	}
	v, err = r.ReadU(4)
	if err != nil || v != 0xC {
		t.Fatalf("ReadU(4) = %d, %v; want 0xC, nil", v, err)
	}
}

func TestReadUEKnownValues(t *testing.T) {
	t.Parallel()
	// bit pattern "1" -> 0, "010" -> 1, "011" -> 2, "00100" -> 3
	r := NewReader([]byte{0b1_010_011_0, 0b0100_0000})
	for _, want := range []uint32{0, 1, 2, 3} {
		got, err := r.ReadUE()
		if err != nil {
			t.Fatalf("ReadUE: %v", err)
		}
		if got != want {
			t.Fatalf("ReadUE = %d, want %d", got, want)
		}
	}
}

func TestReadSEMapping(t *testing.T) {
	t.Parallel()
	// ue=0 -> se=0; ue=1 -> se=1; ue=2 -> se=-1; ue=3 -> se=2; ue=4 -> se=-2
	w := NewWriter()
	w.WriteUE(0)
	w.WriteUE(1)
	w.WriteUE(2)
	w.WriteUE(3)
	w.WriteUE(4)
	r := NewReader(w.Bytes())
	want := []int32{0, 1, -1, 2, -2}
	for _, w := range want {
		got, err := r.ReadSE()
		if err != nil {
			t.Fatalf("ReadSE: %v", err)
		}
		if got != w {
			t.Fatalf("ReadSE = %d, want %d", got, w)
		}
	}
}

func TestExpGolombRoundTrip(t *testing.T) {
	t.Parallel()
	for x := uint32(0); x < 1<<16; x += 37 {
		w := NewWriter()
		w.WriteUE(x)
		r := NewReader(w.Bytes())
		got, err := r.ReadUE()
		if err != nil {
			t.Fatalf("WriteUE/ReadUE(%d): %v", x, err)
		}
		if got != x {
			t.Fatalf("WriteUE/ReadUE(%d) = %d", x, got)
		}
	}

	for x := int32(-1 << 20); x < 1<<20; x += 2579 {
		w := NewWriter()
		w.WriteSE(x)
		r := NewReader(w.Bytes())
		got, err := r.ReadSE()
		if err != nil {
			t.Fatalf("WriteSE/ReadSE(%d): %v", x, err)
		}
		if got != x {
			t.Fatalf("WriteSE/ReadSE(%d) = %d", x, got)
		}
	}
}

func TestReadUUnexpectedEOF(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xFF})
	if _, err := r.ReadU(16); err != ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestByteAlignAndBitsRemaining(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xFF, 0xFF})
	if r.BitsRemaining() != 16 {
		t.Fatalf("BitsRemaining = %d, want 16", r.BitsRemaining())
	}
	_, _ = r.ReadU(3)
	r.ByteAlign()
	if r.BitsRemaining() != 8 {
		t.Fatalf("BitsRemaining after align = %d, want 8", r.BitsRemaining())
	}
}
