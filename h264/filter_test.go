package h264

import (
	"testing"

	"github.com/bugVanisher/h264avc/bits"
	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

// buildSliceBody packs a slice header consistent with sps720p/the fixture
// PPS: pps id 0, frame_num width 4 (log2_max_frame_num_minus4=0), poc lsb
// width 6 (log2_max_pic_order_cnt_lsb_minus4=2), frame_mbs_only_flag=1 so no
// field_pic_flag, pic_order_cnt_type=0, and the PPS's
// bottom_field_pic_order_in_frame_present_flag=0 so no
// delta_pic_order_cnt_bottom.
func buildSliceBody(idr bool, sliceType, frameNum, pocLsb uint32) []byte {
	w := bits.NewWriter()
	w.WriteUE(0)         // first_mb_in_slice
	w.WriteUE(sliceType) // slice_type
	w.WriteUE(0)         // pic_parameter_set_id
	w.WriteU(frameNum, 4)
	if idr {
		w.WriteUE(0) // idr_pic_id
	}
	w.WriteU(pocLsb, 6) // pic_order_cnt_lsb
	return w.Bytes()
}

func idrNALU(frameNum, pocLsb uint32) []byte {
	return append([]byte{0x65}, buildSliceBody(true, 7, frameNum, pocLsb)...)
}

func nonIdrNALU(frameNum, pocLsb uint32) []byte {
	return append([]byte{0x41}, buildSliceBody(false, 0, frameNum, pocLsb)...)
}

func TestFilterMinimalIDRAccessUnit(t *testing.T) {
	sps := append([]byte{0x67}, sps720p...)
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	idr := idrNALU(0, 0)
	data := annexB(sps, pps, idr)

	opts := DefaultFilterOptions()
	opts.SkipUntilKeyframe = false
	f := NewFilter(opts, zerolog.Nop())
	require.NoError(t, f.SetInputFormatAnnexB(ModeBytestream))

	actions, err := f.Push(data, nil)
	require.NoError(t, err)
	flushed, err := f.Flush()
	require.NoError(t, err)
	actions = append(actions, flushed...)

	var buffers []*OutputBuffer
	sawFormat := false
	for _, a := range actions {
		if a.StreamFormat != nil {
			sawFormat = true
			require.Equal(t, 1280, a.StreamFormat.Format.Width)
			require.Equal(t, 720, a.StreamFormat.Format.Height)
		}
		if a.Buffer != nil {
			buffers = append(buffers, a.Buffer)
		}
	}
	require.True(t, sawFormat, "expected a stream-format action")
	require.Len(t, buffers, 1)
	require.True(t, buffers[0].KeyFrame)
	require.Len(t, buffers[0].NALUs, 3)
	require.Equal(t, TypeSPS, buffers[0].NALUs[0].Type)
	require.Equal(t, TypePPS, buffers[0].NALUs[1].Type)
	require.Equal(t, TypeIDR, buffers[0].NALUs[2].Type)
}

func TestFilterSkipUntilKeyframe(t *testing.T) {
	sps := append([]byte{0x67}, sps720p...)
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	nonIdrA := nonIdrNALU(0, 0)
	nonIdrB := nonIdrNALU(1, 2)
	idr := idrNALU(2, 0)
	nonIdrC := nonIdrNALU(3, 2)

	data := annexB(sps, pps, nonIdrA, nonIdrB, idr, nonIdrC)

	opts := DefaultFilterOptions()
	opts.SkipUntilKeyframe = true
	f := NewFilter(opts, zerolog.Nop())
	require.NoError(t, f.SetInputFormatAnnexB(ModeBytestream))

	actions, err := f.Push(data, nil)
	require.NoError(t, err)
	flushed, err := f.Flush()
	require.NoError(t, err)
	actions = append(actions, flushed...)

	var buffers []*OutputBuffer
	for _, a := range actions {
		if a.Buffer != nil {
			buffers = append(buffers, a.Buffer)
		}
	}
	require.Len(t, buffers, 2, "only the keyframe AU and what follows should survive")
	require.True(t, buffers[0].KeyFrame)
}

func TestFilterPushToSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	sps := append([]byte{0x67}, sps720p...)
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	idr := idrNALU(0, 0)
	data := annexB(sps, pps, idr)

	opts := DefaultFilterOptions()
	opts.SkipUntilKeyframe = false
	f := NewFilter(opts, zerolog.Nop())
	require.NoError(t, f.SetInputFormatAnnexB(ModeBytestream))

	sink.EXPECT().WriteAction(gomock.Any()).Return(nil).MinTimes(1)

	require.NoError(t, f.PushTo(data, nil, sink))
	require.NoError(t, f.FlushTo(sink))
}
