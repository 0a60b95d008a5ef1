package h264

import (
	"testing"

	"github.com/bugVanisher/h264avc/scheme"
)

func profileFields(idc uint32, flags ...string) scheme.Fields {
	f := scheme.Fields{"profile_idc": idc}
	for _, name := range flags {
		f[name] = true
	}
	return f
}

func TestRecognizeProfileTable(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		f    scheme.Fields
		want string
	}{
		{"high_cavlc_4_4_4_intra", profileFields(44), "high_cavlc_4_4_4_intra"},
		{"constrained_baseline", profileFields(66, "constraint_set1_flag"), "constrained_baseline"},
		{"baseline", profileFields(66), "baseline"},
		{"main", profileFields(77), "main"},
		{"extended", profileFields(88), "extended"},
		{"constrained_high", profileFields(100, "constraint_set4_flag", "constraint_set5_flag"), "constrained_high"},
		{"progressive_high", profileFields(100, "constraint_set4_flag"), "progressive_high"},
		{"high", profileFields(100), "high"},
		{"high_10_intra", profileFields(110, "constraint_set3_flag"), "high_10_intra"},
		{"high_10", profileFields(110), "high_10"},
		{"high_4_4_4_predictive", profileFields(244), "high_4_4_4_predictive"},
		{"unknown", profileFields(9), "unknown"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := RecognizeProfile(c.f); got != c.want {
				t.Fatalf("RecognizeProfile(%s) = %q, want %q", c.name, got, c.want)
			}
		})
	}
}

func TestCodecString(t *testing.T) {
	t.Parallel()
	f := profileFields(100, "constraint_set4_flag")
	f["level_idc"] = uint32(31)
	got := CodecString(f)
	want := "avc1.64081f"
	if got != want {
		t.Fatalf("CodecString = %q, want %q", got, want)
	}
}

func TestChromaSubsample(t *testing.T) {
	t.Parallel()
	cases := []struct {
		idc        uint32
		w, h       int
	}{
		{1, 2, 2},
		{2, 2, 1},
		{3, 1, 1},
		{0, 1, 1},
	}
	for _, c := range cases {
		w, h := chromaSubsample(c.idc)
		if w != c.w || h != c.h {
			t.Fatalf("chromaSubsample(%d) = (%d,%d), want (%d,%d)", c.idc, w, h, c.w, c.h)
		}
	}
}
