package h264

import (
	"testing"

	"github.com/bugVanisher/h264avc/scheme"
)

func vclNALU(t Type, frameNum, ppsID uint32, refIdc uint32) *NALU {
	return &NALU{
		Type: t,
		ParsedFields: scheme.Fields{
			"frame_num":            frameNum,
			"pic_parameter_set_id": ppsID,
			"nal_ref_idc":          refIdc,
		},
		Status: StatusValid,
	}
}

func nonVCLNALU(t Type) *NALU {
	return &NALU{Type: t, ParsedFields: scheme.Fields{}, Status: StatusValid}
}

func TestAccessUnitSplitterGroupsOnePicture(t *testing.T) {
	t.Parallel()
	s := NewAccessUnitSplitter()
	var aus []*AccessUnit

	feed := func(n *NALU) {
		if au := s.Push(n); au != nil {
			aus = append(aus, au)
		}
	}

	sps := nonVCLNALU(TypeSPS)
	pps := nonVCLNALU(TypePPS)
	idr := vclNALU(TypeIDR, 0, 0, 1)
	feed(sps)
	feed(pps)
	feed(idr)

	if final := s.Flush(); final != nil {
		aus = append(aus, final)
	}

	if len(aus) != 1 {
		t.Fatalf("got %d AUs, want 1 (boundary should only occur at frame_num change)", len(aus))
	}
	if len(aus[0].NALUs) != 3 {
		t.Fatalf("first AU has %d NALUs, want 3 (sps,pps,idr)", len(aus[0].NALUs))
	}
	if !aus[0].IsKeyframe() {
		t.Fatalf("expected first AU to be a keyframe")
	}
}

func TestAccessUnitSplitterFrameNumChangeBoundary(t *testing.T) {
	t.Parallel()
	s := NewAccessUnitSplitter()
	var aus []*AccessUnit
	feed := func(n *NALU) {
		if au := s.Push(n); au != nil {
			aus = append(aus, au)
		}
	}

	feed(vclNALU(TypeIDR, 0, 0, 1))
	feed(vclNALU(TypeNonIDR, 1, 0, 1))
	feed(vclNALU(TypeNonIDR, 2, 0, 1))
	if final := s.Flush(); final != nil {
		aus = append(aus, final)
	}

	if len(aus) != 3 {
		t.Fatalf("got %d AUs, want 3 (one per distinct frame_num)", len(aus))
	}
	for i, au := range aus {
		if len(au.NALUs) != 1 {
			t.Fatalf("AU %d has %d NALUs, want 1", i, len(au.NALUs))
		}
	}
}

func TestAccessUnitSplitterAUDForcesBoundary(t *testing.T) {
	t.Parallel()
	s := NewAccessUnitSplitter()
	var aus []*AccessUnit
	feed := func(n *NALU) {
		if au := s.Push(n); au != nil {
			aus = append(aus, au)
		}
	}

	feed(vclNALU(TypeIDR, 0, 0, 1))
	feed(nonVCLNALU(TypeAUD))
	// Same frame_num/pps/ref_idc as before, but AUD forces a new AU anyway.
	feed(vclNALU(TypeIDR, 0, 0, 1))
	if final := s.Flush(); final != nil {
		aus = append(aus, final)
	}

	if len(aus) != 2 {
		t.Fatalf("got %d AUs, want 2 (AUD should force a boundary)", len(aus))
	}
}

func TestAccessUnitSplitterFlushEmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := NewAccessUnitSplitter()
	if au := s.Flush(); au != nil {
		t.Fatalf("expected nil from Flush on empty splitter")
	}
}
