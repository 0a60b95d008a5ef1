package h264

import "github.com/pkg/errors"

// DecoderConfigurationRecord is the parsed AVCC out-of-band parameter-set
// carrier (ISO/IEC 14496-15 §5.2.4.1), grounded on the teacher's
// AVCDecoderConfRecord wire layout.
type DecoderConfigurationRecord struct {
	Profile              uint8
	ProfileCompatibility  uint8
	Level                 uint8
	LengthSizeMinusOne    uint8
	SPS                   [][]byte
	PPS                   [][]byte
}

// LengthSize is the length_size this record advertises (1, 2, or 4).
func (d DecoderConfigurationRecord) LengthSize() int { return int(d.LengthSizeMinusOne) + 1 }

// ParseDCR decodes a Decoder Configuration Record from its wire bytes.
func ParseDCR(b []byte) (DecoderConfigurationRecord, error) {
	var d DecoderConfigurationRecord
	if len(b) < 7 {
		return d, newErr(KindMalformedDcr, nil, "record too short: %d bytes", len(b))
	}
	d.Profile = b[1]
	d.ProfileCompatibility = b[2]
	d.Level = b[3]
	d.LengthSizeMinusOne = b[4] & 0x03

	n := 6
	spsCount := int(b[5] & 0x1f)
	for i := 0; i < spsCount; i++ {
		blob, next, err := readU16Prefixed(b, n)
		if err != nil {
			return d, newErr(KindMalformedDcr, err, "sps[%d]", i)
		}
		d.SPS = append(d.SPS, blob)
		n = next
	}

	if len(b) < n+1 {
		return d, newErr(KindMalformedDcr, nil, "truncated before pps count")
	}
	ppsCount := int(b[n])
	n++
	for i := 0; i < ppsCount; i++ {
		blob, next, err := readU16Prefixed(b, n)
		if err != nil {
			return d, newErr(KindMalformedDcr, err, "pps[%d]", i)
		}
		d.PPS = append(d.PPS, blob)
		n = next
	}

	return d, nil
}

func readU16Prefixed(b []byte, n int) ([]byte, int, error) {
	if len(b) < n+2 {
		return nil, 0, errors.New("truncated length prefix")
	}
	length := int(b[n])<<8 | int(b[n+1])
	n += 2
	if len(b) < n+length {
		return nil, 0, errors.New("truncated body")
	}
	return b[n : n+length], n + length, nil
}

// Marshal encodes d into its wire form.
func (d DecoderConfigurationRecord) Marshal() []byte {
	size := 7
	for _, sps := range d.SPS {
		size += 2 + len(sps)
	}
	for _, pps := range d.PPS {
		size += 2 + len(pps)
	}
	b := make([]byte, size)
	b[0] = 1
	b[1] = d.Profile
	b[2] = d.ProfileCompatibility
	b[3] = d.Level
	b[4] = d.LengthSizeMinusOne | 0xfc
	b[5] = uint8(len(d.SPS)) | 0xe0
	n := 6
	for _, sps := range d.SPS {
		n = putU16Prefixed(b, n, sps)
	}
	b[n] = uint8(len(d.PPS))
	n++
	for _, pps := range d.PPS {
		n = putU16Prefixed(b, n, pps)
	}
	return b
}

func putU16Prefixed(b []byte, n int, blob []byte) int {
	b[n] = byte(len(blob) >> 8)
	b[n+1] = byte(len(blob))
	n += 2
	copy(b[n:], blob)
	return n + len(blob)
}

// NewDCRFromSPSAndPPS builds a single-SPS/single-PPS record with
// length_size fixed at 4, mirroring NewCodecDataFromSPSAndPPS.
func NewDCRFromSPSAndPPS(sps, pps []byte) (DecoderConfigurationRecord, error) {
	if len(sps) < 4 {
		return DecoderConfigurationRecord{}, newErr(KindMalformedDcr, nil, "sps too short: %d bytes", len(sps))
	}
	return DecoderConfigurationRecord{
		Profile:              sps[1],
		ProfileCompatibility: sps[2],
		Level:                sps[3],
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{sps},
		PPS:                  [][]byte{pps},
	}, nil
}
