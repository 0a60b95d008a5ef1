package h264

// nonPrimaryBoundaryTypes are the types that, when they precede a VCL NALU,
// force an AU boundary regardless of primary-picture comparison (AUD, SPS,
// PPS, SEI, and the 14-18 reserved/extension/subset-SPS range).
func forcesBoundary(t Type) bool {
	switch t {
	case TypeAUD, TypeSPS, TypePPS, TypeSEI,
		TypePrefixNALUnit, TypeSubsetSPS, TypeReserved:
		return true
	default:
		return false
	}
}

// AccessUnitSplitter groups parsed NALUs into access units using the H.264
// §7.4.1.2.4 primary-coded-picture detection rules.
type AccessUnitSplitter struct {
	buffer      []*NALU
	lastPrimary *NALU
	sawBoundaryNALU bool
}

// NewAccessUnitSplitter returns an empty splitter.
func NewAccessUnitSplitter() *AccessUnitSplitter {
	return &AccessUnitSplitter{}
}

// Push feeds one parsed NALU to the splitter, returning a completed
// AccessUnit if this NALU closed one (i.e. it is a VCL NALU starting a new
// primary coded picture), or nil if it was buffered.
func (s *AccessUnitSplitter) Push(n *NALU) *AccessUnit {
	if !n.Type.IsVCL() {
		if forcesBoundary(n.Type) {
			s.sawBoundaryNALU = true
		}
		s.buffer = append(s.buffer, n)
		return nil
	}

	if s.lastPrimary == nil {
		// First-ever VCL NALU: nothing to close, just start the first AU.
		s.buffer = append(s.buffer, n)
		s.lastPrimary = n
		s.sawBoundaryNALU = false
		return nil
	}

	newPicture := s.sawBoundaryNALU || isNewPrimaryPicture(s.lastPrimary, n)
	if !newPicture {
		s.buffer = append(s.buffer, n)
		return nil
	}

	// Non-VCL NALUs buffered after the previous picture's last VCL NALU
	// precede this picture, so they open the new access unit.
	split := len(s.buffer)
	for split > 0 && !s.buffer[split-1].Type.IsVCL() {
		split--
	}
	au := &AccessUnit{NALUs: s.buffer[:split:split]}
	s.buffer = append(append([]*NALU{}, s.buffer[split:]...), n)
	s.lastPrimary = n
	s.sawBoundaryNALU = false
	return au
}

// Flush emits whatever remains buffered as a final AccessUnit, or nil if
// nothing is pending. Called at end-of-stream or an externally signalled
// alignment boundary.
func (s *AccessUnitSplitter) Flush() *AccessUnit {
	if len(s.buffer) == 0 {
		return nil
	}
	au := &AccessUnit{NALUs: s.buffer}
	s.buffer = nil
	s.lastPrimary = nil
	s.sawBoundaryNALU = false
	return au
}

// Discard drops whatever is currently buffered without emitting an
// AccessUnit, for when a malformed NALU invalidates the access unit it would
// have belonged to. The NALUs accumulated so far (including any preceding
// SPS/PPS/SEI/AUD) are dropped, and the next VCL NALU starts a fresh access
// unit with no boundary comparison against the discarded primary picture.
func (s *AccessUnitSplitter) Discard() {
	s.buffer = nil
	s.lastPrimary = nil
	s.sawBoundaryNALU = false
}

// isNewPrimaryPicture implements the field-by-field comparison of H.264
// §7.4.1.2.4 between the previous primary-coded-picture NALU a and a
// candidate VCL NALU b.
func isNewPrimaryPicture(a, b *NALU) bool {
	af, bf := a.ParsedFields, b.ParsedFields

	if af.Uint("frame_num") != bf.Uint("frame_num") {
		return true
	}
	if af.Uint("pic_parameter_set_id") != bf.Uint("pic_parameter_set_id") {
		return true
	}
	if af.Bool("field_pic_flag") != bf.Bool("field_pic_flag") {
		return true
	}
	if af.Bool("field_pic_flag") && bf.Bool("field_pic_flag") {
		if af.Bool("bottom_field_flag") != bf.Bool("bottom_field_flag") {
			return true
		}
	}

	aRefZero := af.Uint("nal_ref_idc") == 0
	bRefZero := bf.Uint("nal_ref_idc") == 0
	if aRefZero != bRefZero {
		return true
	}

	aIDR := a.Type == TypeIDR
	bIDR := b.Type == TypeIDR
	if aIDR != bIDR {
		return true
	}
	if aIDR && bIDR && af.Uint("idr_pic_id") != bf.Uint("idr_pic_id") {
		return true
	}

	pocType := af.Uint("pps_sps_pic_order_cnt_type")
	switch pocType {
	case 0:
		if af.Uint("pic_order_cnt_lsb") != bf.Uint("pic_order_cnt_lsb") {
			return true
		}
		if af.Int("delta_pic_order_cnt_bottom") != bf.Int("delta_pic_order_cnt_bottom") {
			return true
		}
	case 1:
		if af.Int("delta_pic_order_cnt_0") != bf.Int("delta_pic_order_cnt_0") {
			return true
		}
		if af.Int("delta_pic_order_cnt_1") != bf.Int("delta_pic_order_cnt_1") {
			return true
		}
	}

	return false
}
