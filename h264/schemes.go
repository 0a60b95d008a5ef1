package h264

import (
	"github.com/bugVanisher/h264avc/scheme"
)

// headerScheme decodes the 1-byte NALU header: forbidden_zero_bit, nal_ref_idc,
// nal_unit_type. A non-zero forbidden_zero_bit does not abort the scheme; the
// NALU parser inspects the field afterward and marks status=error itself.
var headerScheme = scheme.Scheme{
	scheme.FieldN("forbidden_zero_bit", scheme.KindU, 1),
	scheme.FieldN("nal_ref_idc", scheme.KindU, 2),
	scheme.FieldN("nal_unit_type", scheme.KindU, 5),
}

// highProfileIDCs are the profile_idc values that carry the chroma/bit-depth
// extension fields in the SPS (H.264 §7.3.2.1.1).
var highProfileIDCs = map[uint32]bool{
	100: true, 110: true, 122: true, 244: true,
	44: true, 83: true, 86: true, 118: true, 128: true,
}

func hasChromaExtension(f scheme.Fields) bool {
	return highProfileIDCs[f.Uint("profile_idc")]
}

// scalingListScheme reads one scaling list's worth of delta_scale entries; it
// stops reading once nextScale reaches zero, per the standard's scaling-list
// syntax, via Execute since the early-stop behavior doesn't fit a plain for.
func scalingListScheme(name string, size int) scheme.Directive {
	return scheme.Execute(func(ctx *scheme.Context) error {
		lastScale, nextScale := int32(8), int32(8)
		list := make([]interface{}, 0, size)
		for i := 0; i < size; i++ {
			if nextScale != 0 {
				deltaScale, err := ctx.R.ReadSE()
				if err != nil {
					return err
				}
				nextScale = (lastScale + deltaScale + 256) % 256
			}
			v := nextScale
			if nextScale == 0 {
				v = lastScale
			}
			list = append(list, v)
			lastScale = v
		}
		ctx.Local[name] = list
		return nil
	})
}

// seqScalingListsScheme reads seq_scaling_list_present_flag[i] and its
// scaling_list for each of the 8 (monochrome/4:2:0/4:2:2) or 12 (4:4:4)
// lists; the first 6 are 4x4 (size 16), the rest are 8x8 (size 64).
func seqScalingListsScheme() scheme.Directive {
	return scheme.For(
		func(f scheme.Fields) int {
			if f.Uint("chroma_format_idc") == 3 {
				return 12
			}
			return 8
		},
		func(i int) []scheme.Directive {
			size := 16
			if i >= 6 {
				size = 64
			}
			return []scheme.Directive{
				scheme.FieldN(loopName("seq_scaling_list_present_flag", i), scheme.KindU, 1),
				scheme.If(
					func(f scheme.Fields) bool { return f.Bool(loopName("seq_scaling_list_present_flag", i)) },
					scalingListScheme(loopName("scaling_list", i), size),
				),
			}
		},
	)
}

func loopName(base string, i int) string {
	const digits = "0123456789"
	if i < 10 {
		return base + "_" + string(digits[i])
	}
	return base + "_n"
}

// hrdScheme and vuiScheme decode hrd_parameters() and vui_parameters(). The
// fields used downstream are num_units_in_tick/time_scale (framerate) and
// max_num_reorder_frames (B-frame reorder depth for the timestamp generator);
// the remaining VUI fields (aspect ratio, overscan, video signal type, chroma
// loc) are read and kept under their own names as well.
var hrdScheme = scheme.Scheme{
	scheme.Field("cpb_cnt_minus1", scheme.KindUE),
	scheme.FieldN("bit_rate_scale", scheme.KindU, 4),
	scheme.FieldN("cpb_size_scale", scheme.KindU, 4),
	scheme.For(
		func(f scheme.Fields) int { return int(f.Uint("cpb_cnt_minus1")) + 1 },
		func(i int) []scheme.Directive {
			return []scheme.Directive{
				scheme.Field(loopName("bit_rate_value_minus1", i), scheme.KindUE),
				scheme.Field(loopName("cpb_size_value_minus1", i), scheme.KindUE),
				scheme.FieldN(loopName("cbr_flag", i), scheme.KindU, 1),
			}
		},
	),
	scheme.FieldN("initial_cpb_removal_delay_length_minus1", scheme.KindU, 5),
	scheme.FieldN("cpb_removal_delay_length_minus1", scheme.KindU, 5),
	scheme.FieldN("dpb_output_delay_length_minus1", scheme.KindU, 5),
	scheme.FieldN("time_offset_length", scheme.KindU, 5),
}

var vuiScheme = scheme.Scheme{
	scheme.FieldN("aspect_ratio_info_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("aspect_ratio_info_present_flag") },
		scheme.FieldN("aspect_ratio_idc", scheme.KindU, 8),
		scheme.If(
			func(f scheme.Fields) bool { return f.Uint("aspect_ratio_idc") == 255 },
			scheme.FieldN("sar_width", scheme.KindU, 16),
			scheme.FieldN("sar_height", scheme.KindU, 16),
		),
	),
	scheme.FieldN("overscan_info_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("overscan_info_present_flag") },
		scheme.FieldN("overscan_appropriate_flag", scheme.KindU, 1),
	),
	scheme.FieldN("video_signal_type_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("video_signal_type_present_flag") },
		scheme.FieldN("video_format", scheme.KindU, 3),
		scheme.FieldN("video_full_range_flag", scheme.KindU, 1),
		scheme.FieldN("colour_description_present_flag", scheme.KindU, 1),
		scheme.If(
			func(f scheme.Fields) bool { return f.Bool("colour_description_present_flag") },
			scheme.FieldN("colour_primaries", scheme.KindU, 8),
			scheme.FieldN("transfer_characteristics", scheme.KindU, 8),
			scheme.FieldN("matrix_coefficients", scheme.KindU, 8),
		),
	),
	scheme.FieldN("chroma_loc_info_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("chroma_loc_info_present_flag") },
		scheme.Field("chroma_sample_loc_type_top_field", scheme.KindUE),
		scheme.Field("chroma_sample_loc_type_bottom_field", scheme.KindUE),
	),
	scheme.FieldN("timing_info_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("timing_info_present_flag") },
		scheme.FieldN("num_units_in_tick", scheme.KindU, 32),
		scheme.FieldN("time_scale", scheme.KindU, 32),
		scheme.FieldN("fixed_frame_rate_flag", scheme.KindU, 1),
	),
	scheme.FieldN("nal_hrd_parameters_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("nal_hrd_parameters_present_flag") },
		scheme.Execute(func(ctx *scheme.Context) error {
			sub, err := hrdScheme.Run(ctx.R, ctx.Global)
			if err != nil {
				return err
			}
			ctx.Local["nal_hrd"] = sub
			return nil
		}),
	),
	scheme.FieldN("vcl_hrd_parameters_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("vcl_hrd_parameters_present_flag") },
		scheme.Execute(func(ctx *scheme.Context) error {
			sub, err := hrdScheme.Run(ctx.R, ctx.Global)
			if err != nil {
				return err
			}
			ctx.Local["vcl_hrd"] = sub
			return nil
		}),
	),
	scheme.If(
		func(f scheme.Fields) bool {
			return f.Bool("nal_hrd_parameters_present_flag") || f.Bool("vcl_hrd_parameters_present_flag")
		},
		scheme.FieldN("low_delay_hrd_flag", scheme.KindU, 1),
	),
	scheme.FieldN("pic_struct_present_flag", scheme.KindU, 1),
	scheme.FieldN("bitstream_restriction_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("bitstream_restriction_flag") },
		scheme.FieldN("motion_vectors_over_pic_boundaries_flag", scheme.KindU, 1),
		scheme.Field("max_bytes_per_pic_denom", scheme.KindUE),
		scheme.Field("max_bits_per_mb_denom", scheme.KindUE),
		scheme.Field("log2_max_mv_length_horizontal", scheme.KindUE),
		scheme.Field("log2_max_mv_length_vertical", scheme.KindUE),
		scheme.Field("max_num_reorder_frames", scheme.KindUE),
		scheme.Field("max_dec_frame_buffering", scheme.KindUE),
	),
}

// spsScheme decodes a Sequence Parameter Set (H.264 §7.3.2.1.1). It saves
// itself into global_state["sps"][seq_parameter_set_id] as its final step so
// later slice headers can load_global it back.
var spsScheme = scheme.Scheme{
	scheme.FieldN("profile_idc", scheme.KindU, 8),
	scheme.FieldN("constraint_set0_flag", scheme.KindU, 1),
	scheme.FieldN("constraint_set1_flag", scheme.KindU, 1),
	scheme.FieldN("constraint_set2_flag", scheme.KindU, 1),
	scheme.FieldN("constraint_set3_flag", scheme.KindU, 1),
	scheme.FieldN("constraint_set4_flag", scheme.KindU, 1),
	scheme.FieldN("constraint_set5_flag", scheme.KindU, 1),
	scheme.FieldN("reserved_zero_2bits", scheme.KindU, 2),
	scheme.FieldN("level_idc", scheme.KindU, 8),
	scheme.Field("seq_parameter_set_id", scheme.KindUE),
	scheme.If(hasChromaExtension,
		scheme.Field("chroma_format_idc", scheme.KindUE),
		scheme.If(
			func(f scheme.Fields) bool { return f.Uint("chroma_format_idc") == 3 },
			scheme.FieldN("separate_colour_plane_flag", scheme.KindU, 1),
		),
		scheme.Field("bit_depth_luma_minus8", scheme.KindUE),
		scheme.Field("bit_depth_chroma_minus8", scheme.KindUE),
		scheme.FieldN("qpprime_y_zero_transform_bypass_flag", scheme.KindU, 1),
		scheme.FieldN("seq_scaling_matrix_present_flag", scheme.KindU, 1),
		scheme.If(
			func(f scheme.Fields) bool { return f.Bool("seq_scaling_matrix_present_flag") },
			seqScalingListsScheme(),
		),
	),
	scheme.Field("log2_max_frame_num_minus4", scheme.KindUE),
	scheme.Field("pic_order_cnt_type", scheme.KindUE),
	scheme.If(
		func(f scheme.Fields) bool { return f.Uint("pic_order_cnt_type") == 0 },
		scheme.Field("log2_max_pic_order_cnt_lsb_minus4", scheme.KindUE),
	),
	scheme.If(
		func(f scheme.Fields) bool { return f.Uint("pic_order_cnt_type") == 1 },
		scheme.FieldN("delta_pic_order_always_zero_flag", scheme.KindU, 1),
		scheme.Field("offset_for_non_ref_pic", scheme.KindSE),
		scheme.Field("offset_for_top_to_bottom_field", scheme.KindSE),
		scheme.Field("num_ref_frames_in_pic_order_cnt_cycle", scheme.KindUE),
		scheme.For(
			func(f scheme.Fields) int { return int(f.Uint("num_ref_frames_in_pic_order_cnt_cycle")) },
			func(i int) []scheme.Directive {
				return []scheme.Directive{scheme.LoopField("offset_for_ref_frame", i, scheme.KindSE)}
			},
		),
	),
	scheme.Field("max_num_ref_frames", scheme.KindUE),
	scheme.FieldN("gaps_in_frame_num_value_allowed_flag", scheme.KindU, 1),
	scheme.Field("pic_width_in_mbs_minus1", scheme.KindUE),
	scheme.Field("pic_height_in_map_units_minus1", scheme.KindUE),
	scheme.FieldN("frame_mbs_only_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return !f.Bool("frame_mbs_only_flag") },
		scheme.FieldN("mb_adaptive_frame_field_flag", scheme.KindU, 1),
	),
	scheme.FieldN("direct_8x8_inference_flag", scheme.KindU, 1),
	scheme.FieldN("frame_cropping_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("frame_cropping_flag") },
		scheme.Field("frame_crop_left_offset", scheme.KindUE),
		scheme.Field("frame_crop_right_offset", scheme.KindUE),
		scheme.Field("frame_crop_top_offset", scheme.KindUE),
		scheme.Field("frame_crop_bottom_offset", scheme.KindUE),
	),
	scheme.FieldN("vui_parameters_present_flag", scheme.KindU, 1),
	scheme.If(
		func(f scheme.Fields) bool { return f.Bool("vui_parameters_present_flag") },
		scheme.Execute(func(ctx *scheme.Context) error {
			vui, err := vuiScheme.Run(ctx.R, ctx.Global)
			if err != nil {
				return err
			}
			for k, v := range vui {
				ctx.Local["vui_"+k] = v
			}
			return nil
		}),
	),
	scheme.SaveAsGlobal(namespaceSPS, func(f scheme.Fields) string {
		return idKey(f.Uint("seq_parameter_set_id"))
	}),
}

// sliceGroupScheme covers num_slice_groups_minus1>0 machinery (PPS §7.3.2.2),
// consumed for bitstream correctness but not retained by the rest of the
// pipeline, which only needs the PPS's id-level fields.
var sliceGroupScheme = scheme.Scheme{
	scheme.Field("slice_group_map_type", scheme.KindUE),
	scheme.Execute(func(ctx *scheme.Context) error {
		switch ctx.Local.Uint("slice_group_map_type") {
		case 0:
			n := int(ctx.Local.Uint("num_slice_groups_minus1")) + 1
			for i := 0; i < n; i++ {
				if _, err := ctx.R.ReadUE(); err != nil {
					return err
				}
			}
		case 2:
			n := int(ctx.Local.Uint("num_slice_groups_minus1"))
			for i := 0; i < n; i++ {
				if _, err := ctx.R.ReadUE(); err != nil {
					return err
				}
				if _, err := ctx.R.ReadUE(); err != nil {
					return err
				}
			}
		case 3, 4, 5:
			if _, err := ctx.R.ReadBool(); err != nil {
				return err
			}
			if _, err := ctx.R.ReadUE(); err != nil {
				return err
			}
		case 6:
			picSizeMinus1, err := ctx.R.ReadUE()
			if err != nil {
				return err
			}
			bits := bitLengthFor(uint32(ctx.Local.Uint("num_slice_groups_minus1")) + 1)
			for i := uint32(0); i <= picSizeMinus1; i++ {
				if _, err := ctx.R.ReadU(bits); err != nil {
					return err
				}
			}
		}
		return nil
	}),
}

func bitLengthFor(n uint32) int {
	if n <= 1 {
		return 1
	}
	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}

// ppsScheme decodes a Picture Parameter Set (H.264 §7.3.2.2), saving itself
// at global_state["pps"][pic_parameter_set_id].
var ppsScheme = scheme.Scheme{
	scheme.Field("pic_parameter_set_id", scheme.KindUE),
	scheme.Field("seq_parameter_set_id", scheme.KindUE),
	scheme.FieldN("entropy_coding_mode_flag", scheme.KindU, 1),
	scheme.FieldN("bottom_field_pic_order_in_frame_present_flag", scheme.KindU, 1),
	scheme.Field("num_slice_groups_minus1", scheme.KindUE),
	scheme.If(
		func(f scheme.Fields) bool { return f.Uint("num_slice_groups_minus1") > 0 },
		scheme.Execute(func(ctx *scheme.Context) error {
			// Run in the PPS's own context so num_slice_groups_minus1 is visible.
			for _, d := range sliceGroupScheme {
				if err := d(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	),
	scheme.Field("num_ref_idx_l0_default_active_minus1", scheme.KindUE),
	scheme.Field("num_ref_idx_l1_default_active_minus1", scheme.KindUE),
	scheme.FieldN("weighted_pred_flag", scheme.KindU, 1),
	scheme.FieldN("weighted_bipred_idc", scheme.KindU, 2),
	scheme.Field("pic_init_qp_minus26", scheme.KindSE),
	scheme.Field("pic_init_qs_minus26", scheme.KindSE),
	scheme.Field("chroma_qp_index_offset", scheme.KindSE),
	scheme.FieldN("deblocking_filter_control_present_flag", scheme.KindU, 1),
	scheme.FieldN("constrained_intra_pred_flag", scheme.KindU, 1),
	scheme.FieldN("redundant_pic_cnt_present_flag", scheme.KindU, 1),
	scheme.SaveAsGlobal(namespacePPS, func(f scheme.Fields) string {
		return idKey(f.Uint("pic_parameter_set_id"))
	}),
}

// sliceHeaderScheme decodes enough of a slice header (H.264 §7.3.3) to drive
// primary-coded-picture detection: it loads the referenced PPS (prefixed
// "pps_") and, through it, the referenced SPS (prefixed "pps_sps_").
var sliceHeaderScheme = scheme.Scheme{
	scheme.Field("first_mb_in_slice", scheme.KindUE),
	scheme.Field("slice_type", scheme.KindUE),
	scheme.Calculate("slice_type_class", func(f scheme.Fields) interface{} {
		return sliceTypeClass(f.Uint("slice_type"))
	}),
	scheme.Field("pic_parameter_set_id", scheme.KindUE),
	scheme.LoadGlobal(namespacePPS, func(f scheme.Fields) string {
		return idKey(f.Uint("pic_parameter_set_id"))
	}, "pps_", errSpsUnavailableSentinel),
	scheme.Execute(func(ctx *scheme.Context) error {
		spsID := ctx.Local.Uint("pps_seq_parameter_set_id")
		sps, ok := ctx.Global.Load(namespaceSPS, idKey(spsID))
		if !ok {
			return errSpsUnavailableSentinel
		}
		for k, v := range sps {
			ctx.Local["pps_sps_"+k] = v
		}
		return nil
	}),
	scheme.Execute(sliceFrameNumExecutor),
	scheme.Execute(func(ctx *scheme.Context) error {
		if !ctx.Local.Bool("pps_sps_frame_mbs_only_flag") {
			fieldPicFlag, err := ctx.R.ReadBool()
			if err != nil {
				return err
			}
			ctx.Local["field_pic_flag"] = fieldPicFlag
			if fieldPicFlag {
				bottomFieldFlag, err := ctx.R.ReadBool()
				if err != nil {
					return err
				}
				ctx.Local["bottom_field_flag"] = bottomFieldFlag
			}
		}
		return nil
	}),
	scheme.If(
		func(f scheme.Fields) bool { return f.Uint("nal_unit_type") == 5 },
		scheme.Field("idr_pic_id", scheme.KindUE),
	),
	scheme.Execute(slicePOCExecutor),
}

// sliceFrameNumExecutor reads frame_num at width
// pps_sps_log2_max_frame_num_minus4+4, which the plain FieldN directive can't
// express since the width depends on a loaded field.
func sliceFrameNumExecutor(ctx *scheme.Context) error {
	width := int(ctx.Local.Uint("pps_sps_log2_max_frame_num_minus4")) + 4
	v, err := ctx.R.ReadU(width)
	if err != nil {
		return err
	}
	ctx.Local["frame_num"] = v
	return nil
}

// slicePOCExecutor reads the picture-order-count fields whose presence and
// width depend on the referenced SPS's pic_order_cnt_type.
func slicePOCExecutor(ctx *scheme.Context) error {
	pocType := ctx.Local.Uint("pps_sps_pic_order_cnt_type")
	switch pocType {
	case 0:
		width := int(ctx.Local.Uint("pps_sps_log2_max_pic_order_cnt_lsb_minus4")) + 4
		v, err := ctx.R.ReadU(width)
		if err != nil {
			return err
		}
		ctx.Local["pic_order_cnt_lsb"] = v
		if ctx.Local.Bool("pps_bottom_field_pic_order_in_frame_present_flag") && !ctx.Local.Bool("field_pic_flag") {
			d, err := ctx.R.ReadSE()
			if err != nil {
				return err
			}
			ctx.Local["delta_pic_order_cnt_bottom"] = d
		}
	case 1:
		if !ctx.Local.Bool("pps_sps_delta_pic_order_always_zero_flag") {
			d0, err := ctx.R.ReadSE()
			if err != nil {
				return err
			}
			ctx.Local["delta_pic_order_cnt_0"] = d0
			if ctx.Local.Bool("pps_bottom_field_pic_order_in_frame_present_flag") && !ctx.Local.Bool("field_pic_flag") {
				d1, err := ctx.R.ReadSE()
				if err != nil {
					return err
				}
				ctx.Local["delta_pic_order_cnt_1"] = d1
			}
		}
	}
	return nil
}

// sliceTypeClass folds the ten slice_type codes (0-9, the 5-9 range repeats
// 0-4 to signal "all slices in this picture share this type") down to
// P/B/I/SP/SI, stored on the slice header as slice_type_class for hosts.
func sliceTypeClass(sliceType uint32) string {
	switch sliceType % 5 {
	case 0:
		return "P"
	case 1:
		return "B"
	case 2:
		return "I"
	case 3:
		return "SP"
	default:
		return "SI"
	}
}
