// Package h264 implements the H.264/AVC elementary-stream core: a NALU
// splitter (Annex B / AVCC framing), a scheme-driven NALU parser (header,
// SPS, PPS, slice header), an access-unit splitter, a timestamp generator,
// format/profile derivation, a Decoder Configuration Record codec, and the
// Filter coordinator that composes them for a host streaming framework.
//
// It is grounded on the bugVanisher/streamer media/codec/h264parser package
// (SPS/PPS/slice-header field layouts, Annex B / AVCC splitting, the AVC
// Decoder Configuration Record wire format) generalized behind the
// scheme interpreter in package scheme.
package h264

import "github.com/bugVanisher/h264avc/scheme"

// Type is the closed set of nal_unit_type tags (ITU-T H.264 Table 7-1).
type Type int

const (
	TypeUnspecified Type = iota
	TypeNonIDR
	TypePartA
	TypePartB
	TypePartC
	TypeIDR
	TypeSEI
	TypeSPS
	TypePPS
	TypeAUD
	TypeEndOfSeq
	TypeEndOfStream
	TypeFillerData
	TypeSPSExtension
	TypePrefixNALUnit
	TypeSubsetSPS
	TypeReserved
	TypeAuxiliaryNonPart
	TypeExtension
)

// String names the type tag for logging and metadata.
func (t Type) String() string {
	switch t {
	case TypeUnspecified:
		return "unspecified"
	case TypeNonIDR:
		return "non_idr"
	case TypePartA:
		return "part_a"
	case TypePartB:
		return "part_b"
	case TypePartC:
		return "part_c"
	case TypeIDR:
		return "idr"
	case TypeSEI:
		return "sei"
	case TypeSPS:
		return "sps"
	case TypePPS:
		return "pps"
	case TypeAUD:
		return "aud"
	case TypeEndOfSeq:
		return "end_of_seq"
	case TypeEndOfStream:
		return "end_of_stream"
	case TypeFillerData:
		return "filler_data"
	case TypeSPSExtension:
		return "sps_extension"
	case TypePrefixNALUnit:
		return "prefix_nal_unit"
	case TypeSubsetSPS:
		return "subset_sps"
	case TypeAuxiliaryNonPart:
		return "auxiliary_non_part"
	case TypeExtension:
		return "extension"
	case TypeReserved:
		return "reserved"
	default:
		return "unspecified"
	}
}

// TypeOf maps a raw 5-bit nal_unit_type to its Type tag.
func TypeOf(nalUnitType byte) Type {
	switch nalUnitType {
	case 0:
		return TypeUnspecified
	case 1:
		return TypeNonIDR
	case 2:
		return TypePartA
	case 3:
		return TypePartB
	case 4:
		return TypePartC
	case 5:
		return TypeIDR
	case 6:
		return TypeSEI
	case 7:
		return TypeSPS
	case 8:
		return TypePPS
	case 9:
		return TypeAUD
	case 10:
		return TypeEndOfSeq
	case 11:
		return TypeEndOfStream
	case 12:
		return TypeFillerData
	case 13:
		return TypeSPSExtension
	case 14:
		return TypePrefixNALUnit
	case 15:
		return TypeSubsetSPS
	case 16, 17, 18, 21, 22, 23:
		return TypeReserved
	case 19:
		return TypeAuxiliaryNonPart
	case 20:
		return TypeExtension
	default: // 24-31
		return TypeUnspecified
	}
}

// IsVCL reports whether t carries coded slice data (the "primary coded
// picture" candidates per spec.md §4.5).
func (t Type) IsVCL() bool {
	return t == TypeIDR || t == TypeNonIDR || t == TypePartA
}

// Status is whether a NALU parsed cleanly or hit a recoverable error.
type Status int

const (
	StatusValid Status = iota
	StatusError
)

// Timestamps holds a NALU's or access unit's presentation/decode times, in
// nanoseconds, when known.
type Timestamps struct {
	PTS    int64
	DTS    int64
	HasPTS bool
	HasDTS bool
}

// NALU is one parsed Network Abstraction Layer Unit.
type NALU struct {
	ParsedFields   scheme.Fields
	Type           Type
	StrippedPrefix []byte
	Payload        []byte
	Status         Status
	Timestamps     Timestamps
}

// IsKeyframe reports whether this NALU is an IDR slice.
func (n *NALU) IsKeyframe() bool { return n.Type == TypeIDR }

// AccessUnit is an ordered group of NALUs comprising exactly one coded
// picture plus its associated non-VCL NALUs.
type AccessUnit struct {
	NALUs []*NALU
}

// PrimaryPicture returns the single VCL NALU in the access unit, or nil if
// none is present (callers should treat that as malformed).
func (a *AccessUnit) PrimaryPicture() *NALU {
	for _, n := range a.NALUs {
		if n.Type.IsVCL() {
			return n
		}
	}
	return nil
}

// IsKeyframe reports whether the access unit's primary picture is an IDR.
func (a *AccessUnit) IsKeyframe() bool {
	p := a.PrimaryPicture()
	return p != nil && p.IsKeyframe()
}

// ByteSize returns the sum of the payload sizes of all NALUs in the unit.
func (a *AccessUnit) ByteSize() int {
	n := 0
	for _, nalu := range a.NALUs {
		n += len(nalu.Payload)
	}
	return n
}
