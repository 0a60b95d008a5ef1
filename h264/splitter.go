package h264

import "github.com/pkg/errors"

// StreamStructure tags the three standard H.264 byte-level framings.
type StreamStructure int

const (
	StructureAnnexB StreamStructure = iota
	StructureAVC1
	StructureAVC3
)

func (s StreamStructure) String() string {
	switch s {
	case StructureAnnexB:
		return "annexb"
	case StructureAVC1:
		return "avc1"
	case StructureAVC3:
		return "avc3"
	default:
		return "unknown"
	}
}

// rawNALU is one splitter-emitted payload before header parsing: the framing
// bytes that preceded it (start code or length prefix) and its body.
type rawNALU struct {
	StrippedPrefix []byte
	Body           []byte
}

// Splitter reframes a chunked byte stream into NALU-sized payloads, either by
// scanning Annex B start codes or by reading AVCC length prefixes. It holds a
// pending-tail buffer across Split calls so NALUs split across input chunks
// are reassembled correctly.
type Splitter struct {
	Structure  StreamStructure
	LengthSize int // 1, 2, or 4; only meaningful for AVC1/AVC3

	buf []byte
}

// NewSplitter returns a Splitter for the given structure. LengthSize is
// ignored for Annex B.
func NewSplitter(structure StreamStructure, lengthSize int) *Splitter {
	return &Splitter{Structure: structure, LengthSize: lengthSize}
}

// Split appends data to the pending buffer and emits every NALU it can
// confirm complete. Annex B NALUs are confirmed complete by the arrival of a
// subsequent start code; AVCC NALUs are confirmed complete once their
// advertised length is satisfied. Split takes no alignment hint: the last
// Annex B NALU is always held back until a later start code or Flush, so
// callers with nalu_aligned or au_aligned input call Flush right after Split.
func (s *Splitter) Split(data []byte) ([]rawNALU, error) {
	s.buf = append(s.buf, data...)
	if s.Structure == StructureAnnexB {
		return s.splitAnnexB(false)
	}
	return s.splitAVCC()
}

// Flush forces emission of whatever remains in the pending buffer, treating
// it as a complete trailing NALU (end-of-stream or externally signalled
// alignment boundary).
func (s *Splitter) Flush() ([]rawNALU, error) {
	if s.Structure == StructureAnnexB {
		return s.splitAnnexB(true)
	}
	out, err := s.splitAVCC()
	if err != nil {
		return nil, err
	}
	if len(s.buf) > 0 {
		// Trailing bytes with no valid length prefix are dropped; a
		// well-formed AVCC stream never leaves a partial length header at EOS
		// unless truncated, which we treat as nothing to flush.
		s.buf = nil
	}
	return out, nil
}

// startCodeAt reports the length of a start code beginning at buf[i] (4 for
// 00 00 00 01, 3 for 00 00 01, 0 if none), preferring the longer match.
func startCodeAt(buf []byte, i int) int {
	if i+4 <= len(buf) && buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 0 && buf[i+3] == 1 {
		return 4
	}
	if i+3 <= len(buf) && buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
		return 3
	}
	return 0
}

func (s *Splitter) splitAnnexB(flushing bool) ([]rawNALU, error) {
	var out []rawNALU
	buf := s.buf

	// Find all start-code positions up front.
	type sc struct {
		pos, length int
	}
	var codes []sc
	for i := 0; i < len(buf); {
		if n := startCodeAt(buf, i); n > 0 {
			codes = append(codes, sc{i, n})
			i += n
			continue
		}
		i++
	}
	if len(codes) == 0 {
		if flushing && len(buf) > 0 {
			out = append(out, rawNALU{Body: dup(buf)})
			s.buf = nil
		}
		return out, nil
	}

	for i := 0; i < len(codes); i++ {
		start := codes[i].pos + codes[i].length
		var end int
		haveNext := i+1 < len(codes)
		if haveNext {
			end = codes[i+1].pos
		} else {
			end = len(buf)
		}
		if !haveNext && !flushing {
			// Last NALU isn't confirmed complete yet; hold it and everything
			// from its start code onward in the pending buffer.
			s.buf = dup(buf[codes[i].pos:])
			return out, nil
		}
		prefix := dup(buf[codes[i].pos:start])
		body := dup(buf[start:end])
		if len(body) > 0 {
			out = append(out, rawNALU{StrippedPrefix: prefix, Body: body})
		}
	}
	s.buf = nil
	return out, nil
}

func (s *Splitter) splitAVCC() ([]rawNALU, error) {
	if s.LengthSize != 1 && s.LengthSize != 2 && s.LengthSize != 4 {
		return nil, errors.Errorf("h264: invalid AVCC length_size %d", s.LengthSize)
	}
	var out []rawNALU
	buf := s.buf
	pos := 0
	for {
		if len(buf)-pos < s.LengthSize {
			break
		}
		length := readBELength(buf[pos:pos+s.LengthSize], s.LengthSize)
		if len(buf)-pos-s.LengthSize < length {
			break
		}
		prefix := dup(buf[pos : pos+s.LengthSize])
		body := dup(buf[pos+s.LengthSize : pos+s.LengthSize+length])
		out = append(out, rawNALU{StrippedPrefix: prefix, Body: body})
		pos += s.LengthSize + length
	}
	s.buf = dup(buf[pos:])
	return out, nil
}

func readBELength(b []byte, n int) int {
	v := 0
	for i := 0; i < n; i++ {
		v = v<<8 | int(b[i])
	}
	return v
}

func dup(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
