package h264

import (
	"github.com/bugVanisher/h264avc/bits"
	"github.com/bugVanisher/h264avc/scheme"
)

// Parser decodes NALU headers and, for NALU types that carry syntactical
// payload, runs the corresponding scheme against the emulation-prevention-
// stripped body while threading a persistent ParserState across calls.
type Parser struct {
	State *ParserState
}

// NewParser returns a Parser with a fresh ParserState.
func NewParser() *Parser {
	return &Parser{State: NewParserState()}
}

// stripEmulationPrevention removes the 0x03 byte from every 0x000003 triple
// in body, per the Annex B emulation-prevention scheme. Only SPS/PPS/slice
// payloads require this; the 1-byte NALU header never does.
func stripEmulationPrevention(body []byte) []byte {
	out := make([]byte, 0, len(body))
	zeros := 0
	for i := 0; i < len(body); i++ {
		b := body[i]
		if zeros >= 2 && b == 3 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// Parse decodes one NALU payload (header byte plus body, no framing prefix).
// It never returns an error itself: parse failures are captured as
// status=error on the returned NALU, per the spec's "synthesize a status=error
// NALU while preserving global state" recovery policy. prefix is the framing
// bytes the splitter stripped, preserved verbatim in StrippedPrefix.
func (p *Parser) Parse(prefix, payload []byte) *NALU {
	p.State.NALUCount++
	n := &NALU{StrippedPrefix: prefix, Payload: payload, Status: StatusValid}

	if len(payload) == 0 {
		n.Status = StatusError
		p.State.ErrorCount++
		return n
	}

	r := bits.NewReader(payload[:1])
	hdr, err := headerScheme.Run(r, p.State.Global)
	if err != nil || hdr.Uint("forbidden_zero_bit") != 0 {
		n.Status = StatusError
		p.State.ErrorCount++
		return n
	}
	n.Type = TypeOf(byte(hdr.Uint("nal_unit_type")))
	n.ParsedFields = hdr

	body := payload[1:]
	switch n.Type {
	case TypeSPS:
		p.parseBody(n, body, spsScheme)
		if n.Status == StatusValid {
			p.State.SaveSPS(n.ParsedFields.Uint("seq_parameter_set_id"), n.ParsedFields)
		}
	case TypePPS:
		p.parseBody(n, body, ppsScheme)
		if n.Status == StatusValid {
			p.State.SavePPS(n.ParsedFields.Uint("pic_parameter_set_id"), n.ParsedFields)
		}
	case TypeIDR, TypeNonIDR, TypePartA:
		p.parseSliceHeader(n, body, hdr)
	}
	return n
}

func (p *Parser) parseBody(n *NALU, body []byte, s scheme.Scheme) {
	clean := stripEmulationPrevention(body)
	r := bits.NewReader(clean)
	fields, err := s.Run(r, p.State.Global)
	if err != nil {
		n.Status = StatusError
		p.State.ErrorCount++
		return
	}
	for k, v := range fields {
		n.ParsedFields[k] = v
	}
}

func (p *Parser) parseSliceHeader(n *NALU, body []byte, hdr scheme.Fields) {
	clean := stripEmulationPrevention(body)
	r := bits.NewReader(clean)
	ctx := &scheme.Context{R: r, Local: scheme.Fields{"nal_unit_type": hdr.Uint("nal_unit_type")}, Global: p.State.Global}
	for i, d := range sliceHeaderScheme {
		if err := d(ctx); err != nil {
			n.Status = StatusError
			p.State.ErrorCount++
			_ = i
			return
		}
	}
	for k, v := range ctx.Local {
		if k == "nal_unit_type" {
			continue
		}
		n.ParsedFields[k] = v
	}
}
