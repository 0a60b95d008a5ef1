package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimestampGeneratorReorderSafeProfileNeedsNoOffset(t *testing.T) {
	g := NewTimestampGenerator(Framerate{Frames: 25, Seconds: 1}, 1e9, 0, nil)
	ts, err := g.Next("baseline", false)
	require.NoError(t, err)
	require.True(t, ts.HasPTS)
	require.Equal(t, ts.PTS, ts.DTS)
}

func TestTimestampGeneratorRejectsReorderingProfileWithoutOffset(t *testing.T) {
	g := NewTimestampGenerator(Framerate{Frames: 25, Seconds: 1}, 1e9, DefaultMaxReorderFrames, nil)
	_, err := g.Next("high", false)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, KindUnsupportedProfileForTsGen, herr.Kind)
}

func TestTimestampGeneratorAcceptsReorderingProfileWithSPSDerivedOffset(t *testing.T) {
	g := NewTimestampGenerator(Framerate{Frames: 25, Seconds: 1}, 1e9, 3, nil)
	ts, err := g.Next("high", true)
	require.NoError(t, err)
	require.True(t, ts.HasDTS)
	require.Less(t, ts.DTS, ts.PTS)
}

func TestTimestampGeneratorExplicitDTSOffsetOverridesReorderFrames(t *testing.T) {
	offset := int64(120000000)
	g := NewTimestampGenerator(Framerate{Frames: 25, Seconds: 1}, 1e9, DefaultMaxReorderFrames, &offset)
	ts, err := g.Next("high", true)
	require.NoError(t, err)
	require.Equal(t, ts.PTS-offset, ts.DTS)
}
