package h264

import (
	"strconv"

	"github.com/bugVanisher/h264avc/scheme"
)

// ParserState is the cross-NALU memory a Parser threads across an entire
// stream: the scheme interpreter's global map (SPS/PPS caches keyed by id)
// plus counters. Parser.Parse advances NALUCount and ErrorCount; AUCount is
// not updated anywhere in this package. It is monotonically updated as SPS/PPS NALUs arrive, mirroring the
// teacher's h264parser.Context accumulating sps/pps across Parse calls.
type ParserState struct {
	Global *scheme.GlobalState

	NALUCount  int64
	AUCount    int64
	ErrorCount int64

	lastSPSID int32
	haveSPS   bool
}

// NewParserState returns an empty ParserState ready for a fresh stream.
func NewParserState() *ParserState {
	return &ParserState{Global: scheme.NewGlobalState()}
}

const (
	namespaceSPS = "sps"
	namespacePPS = "pps"
)

func idKey(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

// SPS returns the cached SPS fields for id, if one has been parsed.
func (s *ParserState) SPS(id uint32) (scheme.Fields, bool) {
	return s.Global.Load(namespaceSPS, idKey(id))
}

// PPS returns the cached PPS fields for id, if one has been parsed.
func (s *ParserState) PPS(id uint32) (scheme.Fields, bool) {
	return s.Global.Load(namespacePPS, idKey(id))
}

// SaveSPS caches fields under its own seq_parameter_set_id.
func (s *ParserState) SaveSPS(id uint32, fields scheme.Fields) {
	s.Global.Save(namespaceSPS, idKey(id), fields)
	s.lastSPSID = int32(id)
	s.haveSPS = true
}

// SavePPS caches fields under its own pic_parameter_set_id.
func (s *ParserState) SavePPS(id uint32, fields scheme.Fields) {
	s.Global.Save(namespacePPS, idKey(id), fields)
}

// LastSPS returns the most recently saved SPS, if any, used for format
// derivation before a slice header names an explicit pic_parameter_set_id.
func (s *ParserState) LastSPS() (scheme.Fields, bool) {
	if !s.haveSPS {
		return nil, false
	}
	return s.SPS(uint32(s.lastSPSID))
}
