package h264

// Framerate is a rational frames-per-second value.
type Framerate struct {
	Frames int64
	Seconds int64
}

// reorderSafeProfiles are the profiles for which PTS=DTS (no B-frame
// reorder) is safe to assume absent an explicit reorder depth.
var reorderSafeProfiles = map[string]bool{
	"baseline":             true,
	"constrained_baseline": true,
}

// TimestampGenerator synthesizes constant-framerate PTS/DTS for access units
// that arrive without host-supplied timestamps.
type TimestampGenerator struct {
	Rate             Framerate
	TimeUnitPerSec   int64 // host time unit per second, e.g. 1e9 for nanoseconds
	MaxReorderFrames int64

	// DTSOffset, when non-nil, is an explicit host-supplied PTS-DTS gap in
	// TimeUnitPerSec units (the generate_best_effort_timestamps.add_dts_offset
	// host option), overriding the MaxReorderFrames*framePeriod computation.
	DTSOffset *int64

	n int64
}

// NewTimestampGenerator returns a generator at frame count 0. maxReorder is
// the B-frame reorder depth (SPS max_num_reorder_frames when available, else
// the default of 2). dtsOffset, if non-nil, overrides the reorder-frame-based
// PTS-DTS gap with an explicit host-supplied one.
func NewTimestampGenerator(rate Framerate, timeUnitPerSec int64, maxReorder int64, dtsOffset *int64) *TimestampGenerator {
	return &TimestampGenerator{Rate: rate, TimeUnitPerSec: timeUnitPerSec, MaxReorderFrames: maxReorder, DTSOffset: dtsOffset}
}

// DefaultMaxReorderFrames is used when an SPS doesn't carry bitstream
// restriction info (max_num_reorder_frames).
const DefaultMaxReorderFrames = 2

// framePeriod returns the duration of one frame in TimeUnitPerSec units.
func (g *TimestampGenerator) framePeriod() int64 {
	if g.Rate.Frames == 0 {
		return 0
	}
	return g.Rate.Seconds * g.TimeUnitPerSec / g.Rate.Frames
}

// Next returns the (pts, dts) for the next access unit in decode order and
// advances the internal counter. profile gates whether generation is even
// permitted: only baseline/constrained_baseline are supported without an
// explicit reorder offset being requested by the caller. haveReorderOffset
// tells Next whether MaxReorderFrames reflects a real offset (an explicit
// host override or an SPS-derived vui_max_num_reorder_frames) rather than
// the bare DefaultMaxReorderFrames fallback, which is not itself sufficient
// to promise PTS/DTS correctness for a reordering profile.
func (g *TimestampGenerator) Next(profile string, haveReorderOffset bool) (Timestamps, error) {
	if !reorderSafeProfiles[profile] && !haveReorderOffset {
		return Timestamps{}, newErr(KindUnsupportedProfileForTsGen, nil,
			"timestamp generation requires an explicit or SPS-derived reorder offset for profile %q", profile)
	}
	pts := g.n * g.Rate.Seconds * g.TimeUnitPerSec / g.Rate.Frames
	offset := g.MaxReorderFrames * g.framePeriod()
	if g.DTSOffset != nil {
		offset = *g.DTSOffset
	}
	dts := pts - offset
	g.n++
	return Timestamps{PTS: pts, DTS: dts, HasPTS: true, HasDTS: true}, nil
}
