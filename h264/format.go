package h264

import "github.com/bugVanisher/h264avc/scheme"

// Format is the width/height/profile descriptor derived from a parsed SPS,
// carried on the Filter's output stream-format action.
type Format struct {
	Width   int
	Height  int
	Profile string
	Level   uint32
}

// chromaSubsample returns (sub_width_c, sub_height_c) for chroma_format_idc.
func chromaSubsample(chromaFormatIDC uint32) (int, int) {
	switch chromaFormatIDC {
	case 1:
		return 2, 2
	case 2:
		return 2, 1
	case 3:
		return 1, 1
	default: // 0: monochrome
		return 1, 1
	}
}

// DeriveFormat computes width/height/profile/level from a parsed SPS's
// fields, per H.264 §7.4.2.1.1's cropping-rectangle formulas.
func DeriveFormat(sps scheme.Fields) Format {
	widthInMbs := int(sps.Uint("pic_width_in_mbs_minus1")) + 1
	heightInMapUnits := int(sps.Uint("pic_height_in_map_units_minus1")) + 1
	frameMbsOnly := sps.Bool("frame_mbs_only_flag")
	heightInMbsFactor := 2
	if frameMbsOnly {
		heightInMbsFactor = 1
	}
	heightInMbs := heightInMbsFactor * heightInMapUnits

	width := 16 * widthInMbs
	height := 16 * heightInMbs

	if sps.Bool("frame_cropping_flag") {
		// chroma_format_idc is absent outside the high profiles and is
		// then inferred to be 1 (4:2:0).
		chromaFormatIDC := uint32(1)
		if _, ok := sps["chroma_format_idc"]; ok {
			chromaFormatIDC = sps.Uint("chroma_format_idc")
		}
		chromaArrayType := chromaFormatIDC
		if sps.Bool("separate_colour_plane_flag") {
			chromaArrayType = 0
		}
		subW, subH := chromaSubsample(chromaFormatIDC)
		var cropUnitX, cropUnitY int
		if chromaArrayType == 0 {
			cropUnitX = 1
			cropUnitY = heightInMbsFactor
		} else {
			cropUnitX = subW
			cropUnitY = subH * heightInMbsFactor
		}
		left := int(sps.Uint("frame_crop_left_offset"))
		right := int(sps.Uint("frame_crop_right_offset"))
		top := int(sps.Uint("frame_crop_top_offset"))
		bottom := int(sps.Uint("frame_crop_bottom_offset"))
		width -= cropUnitX * (left + right)
		height -= cropUnitY * (top + bottom)
	}

	return Format{
		Width:   width,
		Height:  height,
		Profile: RecognizeProfile(sps),
		Level:   sps.Uint("level_idc"),
	}
}

// profileRule is one row of the profile-recognition table: the first rule
// whose profile_idc and constraint bits all match wins.
type profileRule struct {
	name       string
	profileIDC uint32
	constraint func(f scheme.Fields) bool
}

var profileTable = []profileRule{
	{"high_cavlc_4_4_4_intra", 44, func(f scheme.Fields) bool { return true }},
	{"constrained_baseline", 66, func(f scheme.Fields) bool { return f.Bool("constraint_set1_flag") }},
	{"baseline", 66, func(f scheme.Fields) bool { return true }},
	{"main", 77, func(f scheme.Fields) bool { return true }},
	{"extended", 88, func(f scheme.Fields) bool { return true }},
	{"constrained_high", 100, func(f scheme.Fields) bool {
		return f.Bool("constraint_set4_flag") && f.Bool("constraint_set5_flag")
	}},
	{"progressive_high", 100, func(f scheme.Fields) bool { return f.Bool("constraint_set4_flag") }},
	{"high", 100, func(f scheme.Fields) bool { return true }},
	{"high_10_intra", 110, func(f scheme.Fields) bool { return f.Bool("constraint_set3_flag") }},
	{"high_10", 110, func(f scheme.Fields) bool { return true }},
	{"high_4_2_2_intra", 122, func(f scheme.Fields) bool { return f.Bool("constraint_set3_flag") }},
	{"high_4_2_2", 122, func(f scheme.Fields) bool { return true }},
	{"high_4_4_4_intra", 244, func(f scheme.Fields) bool { return f.Bool("constraint_set3_flag") }},
	{"high_4_4_4_predictive", 244, func(f scheme.Fields) bool { return true }},
}

// RecognizeProfile matches an SPS's profile_idc and constraint_set* flags
// against the standard profile table, first match wins.
func RecognizeProfile(sps scheme.Fields) string {
	idc := sps.Uint("profile_idc")
	for _, rule := range profileTable {
		if rule.profileIDC == idc && rule.constraint(sps) {
			return rule.name
		}
	}
	return "unknown"
}

const hexDigits = "0123456789abcdef"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}

// CodecString builds the RFC 6381 "avc1.PPCCLL" codec parameter string from
// an SPS's profile_idc, constraint flags, and level_idc.
func CodecString(sps scheme.Fields) string {
	profileIDC := byte(sps.Uint("profile_idc"))
	constraints := byte(0)
	for i, name := range []string{
		"constraint_set0_flag", "constraint_set1_flag", "constraint_set2_flag",
		"constraint_set3_flag", "constraint_set4_flag", "constraint_set5_flag",
	} {
		if sps.Bool(name) {
			constraints |= 1 << uint(7-i)
		}
	}
	levelIDC := byte(sps.Uint("level_idc"))
	return "avc1." + hexByte(profileIDC) + hexByte(constraints) + hexByte(levelIDC)
}
