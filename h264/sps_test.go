package h264

import "testing"

// These SPS fixtures are well-known 1280x720 (profile_idc=100, High Profile)
// and 256x192 (profile_idc=77, Main Profile) H.264 streams used across H.264
// parsing test suites.

var sps720p = []byte{
	0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50,
	0x05, 0xbb, 0xff, 0x00, 0x03, 0x00, 0x04, 0x6a,
	0x02, 0x02, 0x02, 0x80, 0x00, 0x01, 0xf4, 0x80,
	0x00, 0x5d, 0xc0, 0x07, 0x8c, 0x18, 0xcb,
}

var sps256x192 = []byte{
	0x4d, 0x40, 0x1f, 0xb9, 0x08, 0x08, 0x0c,
	0xd8, 0x0b, 0x50, 0x10, 0x10, 0x14, 0x00, 0x00,
	0x0f, 0xa4, 0x00, 0x02, 0xee, 0x03, 0x81, 0x80,
	0x04, 0x93, 0xc0, 0x02, 0x49, 0xe8, 0xa0, 0xc0,
	0x3a, 0x8e, 0x18, 0xc9,
}

func parseSPSFixture(t *testing.T, body []byte) Format {
	t.Helper()
	p := NewParser()
	n := p.Parse(nil, append([]byte{0x67}, body...))
	if n.Status != StatusValid {
		t.Fatalf("sps parse: status=error")
	}
	if n.Type != TypeSPS {
		t.Fatalf("type = %v, want sps", n.Type)
	}
	return DeriveFormat(n.ParsedFields)
}

func TestParseSPS720p(t *testing.T) {
	t.Parallel()
	format := parseSPSFixture(t, sps720p)
	if format.Width != 1280 || format.Height != 720 {
		t.Fatalf("format = %+v, want 1280x720", format)
	}
}

func TestParseSPS256x192(t *testing.T) {
	t.Parallel()
	format := parseSPSFixture(t, sps256x192)
	if format.Width != 256 || format.Height != 192 {
		t.Fatalf("format = %+v, want 256x192", format)
	}
}

func TestParseSPSCachesByID(t *testing.T) {
	t.Parallel()
	p := NewParser()
	n := p.Parse(nil, append([]byte{0x67}, sps720p...))
	if n.Status != StatusValid {
		t.Fatalf("parse: status=error")
	}
	id := n.ParsedFields.Uint("seq_parameter_set_id")
	sps, ok := p.State.SPS(id)
	if !ok {
		t.Fatalf("SPS not cached under id %d", id)
	}
	if sps.Uint("profile_idc") != 100 {
		t.Fatalf("cached profile_idc = %d, want 100", sps.Uint("profile_idc"))
	}
}

func TestRecognizeProfileHigh(t *testing.T) {
	t.Parallel()
	p := NewParser()
	n := p.Parse(nil, append([]byte{0x67}, sps720p...))
	if n.Status != StatusValid {
		t.Fatalf("parse: status=error")
	}
	if got := RecognizeProfile(n.ParsedFields); got != "high" {
		t.Fatalf("profile = %q, want high", got)
	}
}

func TestMalformedHeaderForbiddenBit(t *testing.T) {
	t.Parallel()
	p := NewParser()
	// forbidden_zero_bit=1 in the header byte (top bit set).
	n := p.Parse(nil, []byte{0x80 | 0x67})
	if n.Status != StatusError {
		t.Fatalf("expected status=error for forbidden_zero_bit=1")
	}
}
